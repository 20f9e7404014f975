package sim

import "time"

// Effect is a timed status slot. It is active while now < Until.
type Effect struct {
	Until time.Time
}

// Active reports whether the effect is still running at now
func (e Effect) Active(now time.Time) bool {
	return now.Before(e.Until)
}

// Set starts (or restarts) the effect until the given time
func (e *Effect) Set(until time.Time) {
	e.Until = until
}

// Clear ends the effect immediately
func (e *Effect) Clear() {
	e.Until = time.Time{}
}

// Effects holds the independent status slots of one player
type Effects struct {
	Shield   Effect
	Speed    Effect
	Frozen   Effect
	Inverted Effect
}

// ClearOnRespawn resets the slots a respawn is defined to clear
func (e *Effects) ClearOnRespawn() {
	e.Shield.Clear()
	e.Frozen.Clear()
	e.Inverted.Clear()
}
