package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pollroom/internal/room"
)

// Service bundles the poll gateway: room store, connection manager, hub
// and REST handlers, wired so the store broadcasts through the manager.
type Service struct {
	store       *room.Store
	manager     *ConnectionManager
	hub         *Hub
	restHandler *RestHandler
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	PollDurationSec  int
}

// DefaultConfig returns default configuration for the gateway.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		PollDurationSec:  room.DefaultPollDuration,
	}
}

// NewService creates a gateway service. The clock is injectable so tests
// can drive countdowns with a fake clock.
func NewService(config Config, clock clockwork.Clock) *Service {
	manager := NewConnectionManager(config.ConnectionConfig)
	store := room.NewStore(room.NewCodeGenerator(), clock, manager, config.PollDurationSec)
	sessions := NewSessionRegistry()

	return &Service{
		store:       store,
		manager:     manager,
		hub:         NewHub(store, manager, sessions),
		restHandler: NewRestHandler(store, manager),
	}
}

// Store exposes the room store, mainly for tests and diagnostics.
func (s *Service) Store() *room.Store {
	return s.store
}

// Start runs the broadcast fan-out until the context ends.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting poll gateway service")
	s.manager.Start(ctx)
	log.Info().Msg("poll gateway service stopped")
}

// RegisterRoutes registers the WebSocket and REST routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.hub.HandleWS)
	mux.HandleFunc("GET /api/rooms/{code}", s.restHandler.HandleRoomExists)
	mux.HandleFunc("GET /ws/stats", s.restHandler.HandleStats)
	log.Info().Msg("poll gateway routes registered")
}
