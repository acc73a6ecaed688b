package room

// EventKind identifies a state-change event pushed to every connection
// bound to a room. The kinds here are the room layer's vocabulary; the
// transport envelope lives in the gateway package to avoid cyclic imports.
type EventKind string

const (
	// EventRoomUpdate follows any membership or vote change.
	EventRoomUpdate EventKind = "room_update"
	// EventTimeUpdate fires once per second while the poll is running.
	EventTimeUpdate EventKind = "time_update"
	// EventPollEnded fires exactly once, when the countdown reaches zero.
	EventPollEnded EventKind = "poll_ended"
)

// TimeUpdatePayload carries the remaining seconds for a time_update event.
type TimeUpdatePayload struct {
	TimeRemaining int `json:"time_remaining"`
}

// Broadcaster fans a payload out to every connection currently bound to a
// room code. The room layer depends on it abstractly so the transport can
// be swapped without touching poll logic. No delivery order or retry is
// promised; late joiners only ever see state via their own join ack.
type Broadcaster interface {
	Broadcast(code string, kind EventKind, payload any)
}
