package sim

import "time"

type pendingRespawn struct {
	id  string
	due time.Time
}

// RespawnScheduler queues dead players until their respawn time
type RespawnScheduler struct {
	delay time.Duration
	queue []pendingRespawn
}

// NewRespawnScheduler creates a scheduler with a fixed delay
func NewRespawnScheduler(delay time.Duration) *RespawnScheduler {
	if delay <= 0 {
		delay = RespawnDelay
	}
	return &RespawnScheduler{delay: delay}
}

// Schedule queues id to respawn one delay after killedAt
func (r *RespawnScheduler) Schedule(id string, killedAt time.Time) time.Time {
	due := killedAt.Add(r.delay)
	r.queue = append(r.queue, pendingRespawn{id: id, due: due})
	return due
}

// Due pops every entry whose time has come, in scheduling order
func (r *RespawnScheduler) Due(now time.Time) []string {
	var ready []string
	kept := r.queue[:0]
	for _, e := range r.queue {
		if !now.Before(e.due) {
			ready = append(ready, e.id)
		} else {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(r.queue); i++ {
		r.queue[i] = pendingRespawn{}
	}
	r.queue = kept
	return ready
}

// Pending reports whether id is waiting to respawn
func (r *RespawnScheduler) Pending(id string) bool {
	for _, e := range r.queue {
		if e.id == id {
			return true
		}
	}
	return false
}

// Len returns the number of queued respawns
func (r *RespawnScheduler) Len() int {
	return len(r.queue)
}
