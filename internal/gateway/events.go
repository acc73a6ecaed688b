package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/pollroom/internal/models"
	"github.com/mcdev12/pollroom/internal/room"
)

// RoomEvent is the envelope for every server-to-client message, both
// request acks and room broadcasts.
type RoomEvent struct {
	ID        string          `json:"id"`        // Event UUID
	RoomCode  string          `json:"room_code"` // Empty for failed acks with no room
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of room event.
type EventType string

const (
	EventTypeRoomUpdate EventType = "room_update"
	EventTypeTimeUpdate EventType = "time_update"
	EventTypePollEnded  EventType = "poll_ended"

	EventTypeCreateRoomAck EventType = "create_room_ack"
	EventTypeJoinRoomAck   EventType = "join_room_ack"
	EventTypeSubmitVoteAck EventType = "submit_vote_ack"
)

// ClientMessage is the envelope for every client-to-server request.
type ClientMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MessageType represents the type of inbound client request.
type MessageType string

const (
	MessageTypeCreateRoom MessageType = "create_room"
	MessageTypeJoinRoom   MessageType = "join_room"
	MessageTypeSubmitVote MessageType = "submit_vote"
)

// CreateRoomPayload is the create_room request body. Question and Options
// are optional; the room layer fills in the fixed defaults.
type CreateRoomPayload struct {
	Username string   `json:"username"`
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// JoinRoomPayload is the join_room request body.
type JoinRoomPayload struct {
	Username string `json:"username"`
	RoomCode string `json:"room_code"`
}

// SubmitVotePayload is the submit_vote request body. The target room is
// resolved from the connection's session binding, never from the payload.
type SubmitVotePayload struct {
	Option string `json:"option"`
}

// AckPayload is the synchronous acknowledgement for a client request. It
// is sent before the follow-up broadcast, and always reflects the exact
// state that broadcast will carry.
type AckPayload struct {
	Success  bool                 `json:"success"`
	Error    string               `json:"error,omitempty"`
	RoomCode string               `json:"room_code,omitempty"`
	Room     *models.RoomSnapshot `json:"room,omitempty"`
}

// NewRoomEvent builds an event envelope with a marshaled payload.
func NewRoomEvent(code string, eventType EventType, payload any) (*RoomEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &RoomEvent{
		ID:        uuid.New().String(),
		RoomCode:  code,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// eventTypeFor maps the room layer's event kinds onto wire event types.
func eventTypeFor(kind room.EventKind) EventType {
	switch kind {
	case room.EventTimeUpdate:
		return EventTypeTimeUpdate
	case room.EventPollEnded:
		return EventTypePollEnded
	default:
		return EventTypeRoomUpdate
	}
}
