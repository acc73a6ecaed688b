package gateway

import (
	"sync"
)

// Session binds a live connection to the room it joined and the display
// name it joined under. Bindings are looked up on every request rather
// than hung off the connection object, and exist only for the lifetime of
// the connection.
type Session struct {
	RoomCode string
	Username string
}

// SessionRegistry tracks the session binding per connection ID.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]Session),
	}
}

// Bind associates a connection with a room and username, replacing any
// previous binding for that connection.
func (sr *SessionRegistry) Bind(connID, roomCode, username string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.sessions[connID] = Session{RoomCode: roomCode, Username: username}
}

// Lookup returns the binding for a connection, if any.
func (sr *SessionRegistry) Lookup(connID string) (Session, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	session, ok := sr.sessions[connID]
	return session, ok
}

// Clear drops the binding for a connection. Idempotent.
func (sr *SessionRegistry) Clear(connID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	delete(sr.sessions, connID)
}

// Len returns the number of bound connections.
func (sr *SessionRegistry) Len() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.sessions)
}
