package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pollroom/internal/metrics"
	"github.com/mcdev12/pollroom/internal/room"
)

// Wire error strings reported to clients in failed acks.
const (
	errTextRoomNotFound  = "Room not found"
	errTextVotingEnded   = "Voting has ended for this room"
	errTextUserNotFound  = "User not found in room"
	errTextAlreadyVoted  = "You have already voted"
	errTextInvalidOption = "Invalid option"
	errTextCreateFailed  = "Failed to create room"
)

// Hub routes inbound client requests to the room store and pushes acks and
// broadcasts back out. One read loop runs per connection; each request is
// acked synchronously with the post-mutation state, then the same state is
// broadcast to the whole room.
type Hub struct {
	store    *room.Store
	manager  *ConnectionManager
	sessions *SessionRegistry
}

// NewHub creates a connection hub over a room store and connection manager.
func NewHub(store *room.Store, manager *ConnectionManager, sessions *SessionRegistry) *Hub {
	return &Hub{
		store:    store,
		manager:  manager,
		sessions: sessions,
	}
}

// HandleWS upgrades the request and serves the connection until it drops,
// then runs disconnect cleanup.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.manager.Upgrade(w, r)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}

	h.readLoop(conn)
	h.handleDisconnect(conn)
}

func (h *Hub) readLoop(conn *Connection) {
	cfg := h.manager.config

	conn.Conn.SetReadLimit(cfg.MaxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, raw, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", conn.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		h.dispatch(conn, raw)
		conn.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}

func (h *Hub) dispatch(conn *Connection, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("malformed client message")
		return
	}

	switch msg.Type {
	case MessageTypeCreateRoom:
		h.handleCreateRoom(conn, msg.Data)
	case MessageTypeJoinRoom:
		h.handleJoinRoom(conn, msg.Data)
	case MessageTypeSubmitVote:
		h.handleSubmitVote(conn, msg.Data)
	default:
		log.Warn().
			Str("connection_id", conn.ID).
			Str("type", string(msg.Type)).
			Msg("unknown message type")
	}
}

func (h *Hub) handleCreateRoom(conn *Connection, data json.RawMessage) {
	var payload CreateRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendAck(conn, EventTypeCreateRoomAck, "", AckPayload{Success: false, Error: errTextCreateFailed})
		return
	}

	r, snapshot, err := h.store.CreateRoom(room.CreateRoomRequest{
		Username:     payload.Username,
		Question:     payload.Question,
		Options:      payload.Options,
		ConnectionID: conn.ID,
	})
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to create room")
		h.sendAck(conn, EventTypeCreateRoomAck, "", AckPayload{Success: false, Error: errTextCreateFailed})
		return
	}

	code := r.Code()
	h.manager.Subscribe(conn, code)
	h.sessions.Bind(conn.ID, code, payload.Username)

	h.sendAck(conn, EventTypeCreateRoomAck, code, AckPayload{
		Success:  true,
		RoomCode: code,
		Room:     &snapshot,
	})
	h.manager.Broadcast(code, room.EventRoomUpdate, snapshot)
}

func (h *Hub) handleJoinRoom(conn *Connection, data json.RawMessage) {
	var payload JoinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendAck(conn, EventTypeJoinRoomAck, "", AckPayload{Success: false, Error: errTextRoomNotFound})
		return
	}

	r, err := h.store.GetRoom(payload.RoomCode)
	if err != nil {
		h.sendAck(conn, EventTypeJoinRoomAck, "", AckPayload{Success: false, Error: errTextRoomNotFound})
		return
	}

	snapshot := r.Join(conn.ID, payload.Username)
	h.manager.Subscribe(conn, payload.RoomCode)
	h.sessions.Bind(conn.ID, payload.RoomCode, payload.Username)

	log.Info().
		Str("connection_id", conn.ID).
		Str("room_code", payload.RoomCode).
		Str("username", payload.Username).
		Msg("user joined room")

	h.sendAck(conn, EventTypeJoinRoomAck, payload.RoomCode, AckPayload{
		Success:  true,
		RoomCode: payload.RoomCode,
		Room:     &snapshot,
	})
	h.manager.Broadcast(payload.RoomCode, room.EventRoomUpdate, snapshot)
}

func (h *Hub) handleSubmitVote(conn *Connection, data json.RawMessage) {
	var payload SubmitVotePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendAck(conn, EventTypeSubmitVoteAck, "", AckPayload{Success: false, Error: errTextInvalidOption})
		return
	}

	session, bound := h.sessions.Lookup(conn.ID)
	if !bound {
		metrics.VotesRejected.WithLabelValues("not_in_room").Inc()
		h.sendAck(conn, EventTypeSubmitVoteAck, "", AckPayload{Success: false, Error: wireError(room.ErrNotInRoom)})
		return
	}

	r, err := h.store.GetRoom(session.RoomCode)
	if err != nil {
		metrics.VotesRejected.WithLabelValues("room_not_found").Inc()
		h.sendAck(conn, EventTypeSubmitVoteAck, "", AckPayload{Success: false, Error: wireError(err)})
		return
	}

	snapshot, err := r.SubmitVote(conn.ID, payload.Option)
	if err != nil {
		metrics.VotesRejected.WithLabelValues(rejectReason(err)).Inc()
		h.sendAck(conn, EventTypeSubmitVoteAck, session.RoomCode, AckPayload{Success: false, Error: wireError(err)})
		return
	}

	metrics.VotesCast.Inc()

	log.Info().
		Str("connection_id", conn.ID).
		Str("room_code", session.RoomCode).
		Str("username", session.Username).
		Str("option", payload.Option).
		Msg("vote accepted")

	h.sendAck(conn, EventTypeSubmitVoteAck, session.RoomCode, AckPayload{
		Success:  true,
		RoomCode: session.RoomCode,
		Room:     &snapshot,
	})
	h.manager.Broadcast(session.RoomCode, room.EventRoomUpdate, snapshot)
}

// handleDisconnect runs the transport-level disconnect lifecycle: leave the
// room if bound, delete the room if that left it empty, otherwise tell the
// remaining members. Disconnection is not an error and is never reported to
// the leaving client.
func (h *Hub) handleDisconnect(conn *Connection) {
	if session, bound := h.sessions.Lookup(conn.ID); bound {
		if r, err := h.store.GetRoom(session.RoomCode); err == nil {
			remaining, removed := r.Leave(conn.ID)
			if removed {
				if remaining == 0 {
					h.store.RemoveRoom(session.RoomCode)
				} else {
					h.manager.Broadcast(session.RoomCode, room.EventRoomUpdate, r.Snapshot())
				}
			}
		}
		h.sessions.Clear(conn.ID)

		log.Info().
			Str("connection_id", conn.ID).
			Str("room_code", session.RoomCode).
			Str("username", session.Username).
			Msg("user left room")
	}

	h.manager.Close(conn)
}

func (h *Hub) sendAck(conn *Connection, ackType EventType, code string, payload AckPayload) {
	event, err := NewRoomEvent(code, ackType, payload)
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to build ack event")
		return
	}
	h.manager.SendEvent(conn, event)
}

// wireError maps the room error taxonomy onto the strings clients see.
func wireError(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomInactive):
		return errTextVotingEnded
	case errors.Is(err, room.ErrMemberNotFound):
		return errTextUserNotFound
	case errors.Is(err, room.ErrAlreadyVoted):
		return errTextAlreadyVoted
	case errors.Is(err, room.ErrInvalidOption):
		return errTextInvalidOption
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrNotInRoom):
		return errTextRoomNotFound
	default:
		return errTextRoomNotFound
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomInactive):
		return "inactive"
	case errors.Is(err, room.ErrMemberNotFound):
		return "member_not_found"
	case errors.Is(err, room.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, room.ErrInvalidOption):
		return "invalid_option"
	default:
		return "other"
	}
}
