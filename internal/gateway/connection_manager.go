package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pollroom/internal/metrics"
	"github.com/mcdev12/pollroom/internal/room"
)

// ConnectionManager owns every live WebSocket connection and the per-room
// connection pools used for broadcast fan-out. It implements
// room.Broadcaster, so the room layer can push timer events through it
// without knowing about websockets.
type ConnectionManager struct {
	// Connection pools organized by room code. A connection enters a pool
	// when it creates or joins a room, not at upgrade time.
	roomConns map[string]map[*Connection]bool
	// roomOf tracks which pool a connection sits in, for O(1) unsubscribe.
	roomOf map[*Connection]string
	mu     sync.RWMutex

	upgrader websocket.Upgrader

	config ConnectionConfig

	broadcastCh chan broadcastMessage
}

// Connection represents a WebSocket connection to a client.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	manager *ConnectionManager

	ConnectedAt time.Time

	// done is closed when the connection is torn down. The Send channel is
	// never closed, so concurrent senders can never panic on it.
	done      chan struct{}
	closeOnce sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	roomCode string
	event    EventType
	data     []byte
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConns: make(map[string]map[*Connection]bool),
		roomOf:    make(map[*Connection]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// Start begins processing broadcast messages until the context ends.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Upgrade upgrades an HTTP request to a WebSocket connection and starts
// its write pump. The caller owns the read side.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		manager:     cm,
		ConnectedAt: time.Now(),
		done:        make(chan struct{}),
	}

	metrics.ActiveConnections.Inc()
	go connection.writePump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection, nil
}

// Subscribe adds a connection to a room's broadcast pool, moving it out of
// any pool it was in before.
func (cm *ConnectionManager) Subscribe(conn *Connection, roomCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.unsubscribeLocked(conn)

	if cm.roomConns[roomCode] == nil {
		cm.roomConns[roomCode] = make(map[*Connection]bool)
	}
	cm.roomConns[roomCode][conn] = true
	cm.roomOf[conn] = roomCode

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_code", roomCode).
		Int("pool_size", len(cm.roomConns[roomCode])).
		Msg("connection subscribed to room")
}

// Unsubscribe removes a connection from whatever pool it is in. Idempotent.
func (cm *ConnectionManager) Unsubscribe(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.unsubscribeLocked(conn)
}

func (cm *ConnectionManager) unsubscribeLocked(conn *Connection) {
	roomCode, exists := cm.roomOf[conn]
	if !exists {
		return
	}
	delete(cm.roomOf, conn)

	if pool, ok := cm.roomConns[roomCode]; ok {
		delete(pool, conn)
		if len(pool) == 0 {
			delete(cm.roomConns, roomCode)
		}
	}
}

// Close tears a connection down: out of its pool, write pump signalled,
// socket closed. Safe to call from multiple goroutines; only the first
// call acts.
func (cm *ConnectionManager) Close(conn *Connection) {
	conn.closeOnce.Do(func() {
		cm.Unsubscribe(conn)
		close(conn.done)
		conn.Conn.Close()
		metrics.ActiveConnections.Dec()

		log.Info().
			Str("connection_id", conn.ID).
			Msg("connection closed")
	})
}

// Broadcast implements room.Broadcaster. The payload is wrapped in an
// event envelope, marshaled once, and queued for fan-out to every
// connection in the room's pool.
func (cm *ConnectionManager) Broadcast(code string, kind room.EventKind, payload any) {
	event, err := NewRoomEvent(code, eventTypeFor(kind), payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to build broadcast event")
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to marshal broadcast event")
		return
	}

	select {
	case cm.broadcastCh <- broadcastMessage{roomCode: code, event: event.Type, data: data}:
	default:
		metrics.BroadcastsDropped.Inc()
		log.Warn().Str("room_code", code).Msg("broadcast channel full, dropping message")
	}
}

// SendEvent writes an event directly to one connection, bypassing the room
// pools. Used for request acks.
func (cm *ConnectionManager) SendEvent(conn *Connection, event *RoomEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to marshal event")
		return
	}

	select {
	case conn.Send <- data:
	default:
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.Close(conn)
	}
}

func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	cm.mu.RLock()
	pool, exists := cm.roomConns[message.roomCode]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Snapshot the pool so the lock is not held while writing.
	targets := make([]*Connection, 0, len(pool))
	for conn := range pool {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.Send <- message.data:
		default:
			log.Warn().
				Str("connection_id", conn.ID).
				Str("room_code", message.roomCode).
				Msg("connection send buffer full, closing connection")
			cm.Close(conn)
		}
	}

	metrics.BroadcastsSent.WithLabelValues(string(message.event)).Inc()

	log.Debug().
		Str("event_type", string(message.event)).
		Str("room_code", message.roomCode).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Stats returns counts of live pools and connections.
func (cm *ConnectionManager) Stats() (totalConnections int, activeRooms int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, pool := range cm.roomConns {
		totalConnections += len(pool)
	}
	return totalConnections, len(cm.roomConns)
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.manager.Close(c)
	}()

	for {
		select {
		case <-c.done:
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
