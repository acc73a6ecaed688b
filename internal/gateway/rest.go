package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pollroom/internal/room"
)

// RestHandler serves the stateless query surface next to the event
// channel: a room existence check and connection stats.
type RestHandler struct {
	store   *room.Store
	manager *ConnectionManager
}

// NewRestHandler creates the REST handler for a store and manager.
func NewRestHandler(store *room.Store, manager *ConnectionManager) *RestHandler {
	return &RestHandler{
		store:   store,
		manager: manager,
	}
}

// RoomExistsResponse is the body of the room existence check.
type RoomExistsResponse struct {
	Exists bool `json:"exists"`
}

// HandleRoomExists reports whether a room code is currently live. Served
// over plain request/response so clients can validate a code before
// opening the event channel.
func (h *RestHandler) HandleRoomExists(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		http.Error(w, "room code is required", http.StatusBadRequest)
		return
	}

	resp := RoomExistsResponse{Exists: h.store.RoomExists(code)}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to write existence response")
	}
}

// StatsResponse summarizes gateway load.
type StatsResponse struct {
	TotalConnections int `json:"total_connections"`
	ActiveRooms      int `json:"active_rooms"`
}

// HandleStats returns statistics about active connections and rooms.
func (h *RestHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	conns, rooms := h.manager.Stats()
	resp := StatsResponse{
		TotalConnections: conns,
		ActiveRooms:      rooms,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to write stats response")
	}
}
