package room

import (
	"slices"
	"sync"
	"time"

	"github.com/mcdev12/pollroom/internal/models"
)

// Defaults seeded when create_room supplies no question or options.
const (
	DefaultQuestion = "Which do you prefer?"
)

// DefaultOptions returns the option labels used when none are supplied.
func DefaultOptions() []string {
	return []string{"Cats", "Dogs"}
}

// Room is a single poll session. All mutation entry points (Join, Leave,
// SubmitVote, tick) serialize on the room mutex; operations on different
// rooms never contend. The store owns the aggregate; the room owns its
// members and its countdown handle.
type Room struct {
	mu sync.Mutex

	code      string
	question  string
	options   []string
	votes     []int
	createdBy string
	createdAt time.Time

	// members is keyed by connection ID; order preserves join order for
	// snapshots.
	members map[string]*models.Member
	order   []string

	timeRemaining int
	isActive      bool

	// stop cancels the countdown goroutine. Closed at most once, either
	// when the countdown reaches zero or when the store removes the room.
	stop     chan struct{}
	stopOnce sync.Once
}

func newRoom(code, question string, options []string, createdBy string, createdAt time.Time, duration int) *Room {
	return &Room{
		code:          code,
		question:      question,
		options:       options,
		votes:         make([]int, len(options)),
		createdBy:     createdBy,
		createdAt:     createdAt,
		members:       make(map[string]*models.Member),
		order:         make([]string, 0, 4),
		timeRemaining: duration,
		isActive:      true,
		stop:          make(chan struct{}),
	}
}

// Code returns the room's immutable short identifier.
func (r *Room) Code() string {
	return r.code
}

// Join inserts (or overwrites) the member for a connection and returns the
// resulting snapshot. Rejoining with the same connection ID resets presence
// only; it can never reset a vote, because votes live in the tally, not on
// the member record being replaced.
func (r *Room) Join(connID, username string) models.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[connID]; !exists {
		r.order = append(r.order, connID)
	}
	r.members[connID] = &models.Member{
		ID:       connID,
		Username: username,
	}

	return r.snapshotLocked()
}

// Leave removes the member for a connection. It is idempotent per
// connection ID and never touches the vote tally: votes persist even when
// the voter disconnects. It reports the remaining member count so the
// caller can decide whether to delete the room.
func (r *Room) Leave(connID string) (remaining int, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[connID]; exists {
		delete(r.members, connID)
		r.order = slices.DeleteFunc(r.order, func(id string) bool {
			return id == connID
		})
		removed = true
	}
	return len(r.members), removed
}

// SubmitVote applies one vote for a connection. The isActive check and the
// vote application happen under the same critical section, so a vote can
// never land after a tick has ended the poll.
func (r *Room) SubmitVote(connID, option string) (models.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isActive {
		return models.RoomSnapshot{}, ErrRoomInactive
	}

	member, exists := r.members[connID]
	if !exists {
		return models.RoomSnapshot{}, ErrMemberNotFound
	}

	if member.HasVoted {
		return models.RoomSnapshot{}, ErrAlreadyVoted
	}

	idx := slices.Index(r.options, option)
	if idx < 0 {
		return models.RoomSnapshot{}, ErrInvalidOption
	}

	r.votes[idx]++
	member.HasVoted = true
	member.VotedOption = option

	return r.snapshotLocked(), nil
}

// Snapshot returns the room's read-only projection.
func (r *Room) Snapshot() models.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() models.RoomSnapshot {
	members := make([]models.Member, 0, len(r.order))
	for _, id := range r.order {
		if m, ok := r.members[id]; ok {
			members = append(members, *m)
		}
	}

	return models.RoomSnapshot{
		RoomCode:      r.code,
		Question:      r.question,
		Options:       slices.Clone(r.options),
		Votes:         slices.Clone(r.votes),
		CreatedBy:     r.createdBy,
		CreatedAt:     r.createdAt,
		TimeRemaining: r.timeRemaining,
		IsActive:      r.isActive,
		Members:       members,
	}
}

// tick decrements the countdown by one second. When it reaches zero the
// poll flips to inactive permanently; the transition happens in the same
// critical section as the decrement so votes and the active flag are never
// observed out of step.
func (r *Room) tick() (remaining int, ended bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isActive {
		return r.timeRemaining, false
	}

	r.timeRemaining--
	if r.timeRemaining <= 0 {
		r.timeRemaining = 0
		r.isActive = false
		return 0, true
	}
	return r.timeRemaining, false
}

// stopCountdown cancels the countdown goroutine if it is still running.
// Safe to call more than once.
func (r *Room) stopCountdown() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}
