package sim

import "time"

// RotationScheduler holds the single global rotation deadline.
// The deadline advances in fixed phase: each firing adds one interval to the
// previous deadline, never to the firing time.
type RotationScheduler struct {
	interval time.Duration
	deadline time.Time
}

// NewRotationScheduler schedules the first rotation one interval after start
func NewRotationScheduler(start time.Time, interval time.Duration) *RotationScheduler {
	if interval <= 0 {
		interval = RotationInterval
	}
	return &RotationScheduler{interval: interval, deadline: start.Add(interval)}
}

// Deadline returns the next scheduled rotation
func (r *RotationScheduler) Deadline() time.Time {
	return r.deadline
}

// Interval returns the rotation period
func (r *RotationScheduler) Interval() time.Duration {
	return r.interval
}

// Due reports whether the deadline has elapsed
func (r *RotationScheduler) Due(now time.Time) bool {
	return !now.Before(r.deadline)
}

// Advance moves the deadline forward by whole intervals until it lies after
// now. A stalled loop therefore rotates once, not once per missed interval.
func (r *RotationScheduler) Advance(now time.Time) time.Time {
	r.deadline = r.deadline.Add(r.interval)
	for !r.deadline.After(now) {
		r.deadline = r.deadline.Add(r.interval)
	}
	return r.deadline
}

// Reset restarts the phase from start
func (r *RotationScheduler) Reset(start time.Time) {
	r.deadline = start.Add(r.interval)
}
