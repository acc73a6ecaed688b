package room

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pollroom/internal/metrics"
	"github.com/mcdev12/pollroom/internal/models"
)

// DefaultPollDuration is the countdown seeded into new rooms, in seconds.
const DefaultPollDuration = 60

// codeRetries bounds how often CreateRoom re-generates on a code collision
// before giving up. With a 31^6 code space this effectively never trips.
const codeRetries = 5

// CreateRoomRequest carries the inputs for a new room. Question and
// Options fall back to the fixed defaults when empty.
type CreateRoomRequest struct {
	Username     string   `json:"username"`
	Question     string   `json:"question,omitempty"`
	Options      []string `json:"options,omitempty"`
	ConnectionID string   `json:"-"`
}

// Store is the in-memory registry owning every room aggregate. Its map is
// guarded independently of the per-room mutexes, so creating or deleting
// one room never blocks operations inside another.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	codes       CodeGenerator
	clock       clockwork.Clock
	broadcaster Broadcaster
	duration    int
}

// NewStore creates a room store. Rooms created through it tick on the
// given clock and push timer events through the given broadcaster.
func NewStore(codes CodeGenerator, clock clockwork.Clock, broadcaster Broadcaster, duration int) *Store {
	if duration <= 0 {
		duration = DefaultPollDuration
	}
	return &Store{
		rooms:       make(map[string]*Room),
		codes:       codes,
		clock:       clock,
		broadcaster: broadcaster,
		duration:    duration,
	}
}

// CreateRoom generates a code, builds the room with the creator as its
// first member, registers it, and starts the countdown. The creator is a
// member before the first broadcast can observe the room.
func (s *Store) CreateRoom(req CreateRoomRequest) (*Room, models.RoomSnapshot, error) {
	question := req.Question
	if question == "" {
		question = DefaultQuestion
	}
	options := req.Options
	if len(options) == 0 {
		options = DefaultOptions()
	}

	s.mu.Lock()
	code, err := s.uniqueCodeLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, models.RoomSnapshot{}, err
	}

	r := newRoom(code, question, options, req.Username, s.clock.Now(), s.duration)
	snapshot := r.Join(req.ConnectionID, req.Username)
	s.rooms[code] = r
	s.mu.Unlock()

	go s.runCountdown(r)

	metrics.RoomsCreated.Inc()
	metrics.ActiveRooms.Inc()

	log.Info().
		Str("room_code", code).
		Str("created_by", req.Username).
		Int("duration_sec", s.duration).
		Msg("room created")

	return r, snapshot, nil
}

// GetRoom looks a room up by code.
func (s *Store) GetRoom(code string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.rooms[code]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// RemoveRoom stops the room's countdown and discards it. Called when the
// room's membership reaches zero; removing an unknown code is a no-op.
func (s *Store) RemoveRoom(code string) {
	s.mu.Lock()
	r, exists := s.rooms[code]
	if exists {
		delete(s.rooms, code)
	}
	s.mu.Unlock()

	if !exists {
		return
	}

	r.stopCountdown()
	metrics.ActiveRooms.Dec()
	log.Info().Str("room_code", code).Msg("room deleted")
}

// RoomExists reports whether a code is currently registered.
func (s *Store) RoomExists(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.rooms[code]
	return exists
}

// Len returns the number of live rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// uniqueCodeLocked draws codes until one misses the registry. The
// generator's space makes collisions vanishingly rare, but silently
// overwriting a live room would hand its members to a stranger's poll, so
// the store checks anyway.
func (s *Store) uniqueCodeLocked() (string, error) {
	for attempt := 0; attempt < codeRetries; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := s.rooms[code]; !taken {
			return code, nil
		}
		log.Warn().Str("room_code", code).Int("attempt", attempt+1).Msg("room code collision, retrying")
	}
	return "", ErrCodeExhausted
}
