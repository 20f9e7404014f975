package sim

import "time"

// KillEvent is one kill-feed entry. Killer is empty when the shooter left.
type KillEvent struct {
	Killer     string    `json:"killer"`
	Victim     string    `json:"victim"`
	KillerName string    `json:"killerName,omitempty"`
	VictimName string    `json:"victimName,omitempty"`
	At         time.Time `json:"-"`
}

// RespawnEvent is emitted when a dead player comes back
type RespawnEvent struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// AbilityChange is one player's part of a rotation
type AbilityChange struct {
	ID         string      `json:"id"`
	OldAbility AbilityKind `json:"oldAbility"`
	NewAbility AbilityKind `json:"newAbility"`
}

// RotationEvent is the result of one global ability rotation
type RotationEvent struct {
	Changes      []AbilityChange `json:"changes"`
	NextRotation time.Time       `json:"-"`
}

// AbilityUsedEvent records a successful ability activation
type AbilityUsedEvent struct {
	ID      string      `json:"playerId"`
	Ability AbilityKind `json:"ability"`
}

// KnockedEvent records a player displaced by another player's ability
type KnockedEvent struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// events buffers everything a World produced since the last Step drained it
type events struct {
	kills    []KillEvent
	respawns []RespawnEvent
	used     []AbilityUsedEvent
	knocked  []KnockedEvent
}

func (e *events) reset() {
	e.kills = nil
	e.respawns = nil
	e.used = nil
	e.knocked = nil
}

// StepResult is everything one tick produced, plus the snapshot taken after it
type StepResult struct {
	Tick          uint64
	Now           time.Time
	Kills         []KillEvent
	Respawns      []RespawnEvent
	AbilitiesUsed []AbilityUsedEvent
	Knocked       []KnockedEvent
	Rotation      *RotationEvent
	Players       []PlayerState
	Projectiles   []ProjectileState
}
