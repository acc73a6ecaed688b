package room

import (
	"time"

	"github.com/rs/zerolog/log"
)

// runCountdown drives one room's per-second countdown until the poll ends
// or the room is removed. Every tick decrements the remaining time under
// the room mutex, so ticks serialize against votes, joins and leaves, then
// pushes a time_update to all bound connections. At zero the poll flips to
// inactive and a single poll_ended event carries the final snapshot.
//
// The goroutine exits on its own at zero; RemoveRoom closes the stop
// channel so that deleting an active room never leaves a ticker running
// against a dead aggregate.
func (s *Store) runCountdown(r *Room) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			log.Debug().Str("room_code", r.code).Msg("countdown stopped")
			return

		case <-ticker.Chan():
			remaining, ended := r.tick()

			s.broadcaster.Broadcast(r.code, EventTimeUpdate, TimeUpdatePayload{
				TimeRemaining: remaining,
			})

			if ended {
				s.broadcaster.Broadcast(r.code, EventPollEnded, r.Snapshot())
				log.Info().Str("room_code", r.code).Msg("poll ended")
				return
			}
		}
	}
}
