package sim

import "time"

// Player is one connected (or scripted) participant
type Player struct {
	ID        string
	AccountID string // empty for guests and bots
	Name      string
	Bot       bool

	X, Y     float64
	Rotation float64
	VX, VY   float64 // intent set by the last input, not momentum

	Alive bool
	Team  Team

	Ability  AbilityKind
	LastUsed map[AbilityKind]time.Time
	Weapon   WeaponKind
	LastShot time.Time

	Score  int
	Kills  int
	Deaths int
	Coins  int

	Effects Effects
}

// NewPlayer creates a living player at the given position
func NewPlayer(id, name string, pos Point, ability AbilityKind) *Player {
	return &Player{
		ID:       id,
		Name:     name,
		X:        pos.X,
		Y:        pos.Y,
		Alive:    true,
		Ability:  ability,
		LastUsed: make(map[AbilityKind]time.Time),
		Weapon:   WeaponPistol,
	}
}

// Shielded reports whether the shield slot is active
func (p *Player) Shielded(now time.Time) bool {
	return p.Effects.Shield.Active(now)
}

// AbilityReady reports whether kind is off cooldown for this player
func (p *Player) AbilityReady(kind AbilityKind, now time.Time) bool {
	def, ok := LookupAbility(kind)
	if !ok {
		return false
	}
	last, used := p.LastUsed[kind]
	return !used || !last.Add(def.Cooldown).After(now)
}

// WeaponReady reports whether the equipped weapon can fire at now
func (p *Player) WeaponReady(now time.Time) bool {
	w, ok := LookupWeapon(p.Weapon)
	if !ok {
		return false
	}
	return p.LastShot.IsZero() || !p.LastShot.Add(w.Cooldown).After(now)
}

func (p *Player) stop() {
	p.VX = 0
	p.VY = 0
}

// State converts to the snapshot form
func (p *Player) State(now time.Time) PlayerState {
	return PlayerState{
		ID:       p.ID,
		Name:     p.Name,
		X:        p.X,
		Y:        p.Y,
		Rotation: p.Rotation,
		VX:       p.VX,
		VY:       p.VY,
		Alive:    p.Alive,
		Shielded: p.Shielded(now),
		Score:    p.Score,
		Kills:    p.Kills,
		Deaths:   p.Deaths,
		Coins:    p.Coins,
		Team:     p.Team,
		Ability:  p.Ability,
		Weapon:   p.Weapon,
		Bot:      p.Bot,
	}
}

// PlayerState is the observable per-player record sent in snapshots
type PlayerState struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Rotation float64     `json:"rotation"`
	VX       float64     `json:"vx"`
	VY       float64     `json:"vy"`
	Alive    bool        `json:"alive"`
	Shielded bool        `json:"isShielded"`
	Score    int         `json:"score"`
	Kills    int         `json:"kills"`
	Deaths   int         `json:"deaths"`
	Coins    int         `json:"coins"`
	Team     Team        `json:"team,omitempty"`
	Ability  AbilityKind `json:"ability"`
	Weapon   WeaponKind  `json:"weapon"`
	Bot      bool        `json:"bot,omitempty"`
}
