package sim

import (
	"math"
	"time"
)

// Projectile is a live bullet. Velocity is in units per tick.
type Projectile struct {
	Owner  string
	X, Y   float64
	VX, VY float64
	Born   time.Time
	TTL    time.Duration
	Radius float64
	Weapon WeaponKind
}

// NewProjectile creates a bullet leaving the muzzle of shooter at angle
func NewProjectile(shooter *Player, w WeaponDef, angle float64, now time.Time) *Projectile {
	cos, sin := math.Cos(angle), math.Sin(angle)
	return &Projectile{
		Owner:  shooter.ID,
		X:      shooter.X + cos*MuzzleOffset,
		Y:      shooter.Y + sin*MuzzleOffset,
		VX:     cos * w.Speed,
		VY:     sin * w.Speed,
		Born:   now,
		TTL:    w.TTL,
		Radius: w.Radius,
		Weapon: w.Kind,
	}
}

// Update advances the projectile one tick
func (pr *Projectile) Update() {
	pr.X += pr.VX
	pr.Y += pr.VY
}

// Expired reports whether the projectile outlived its TTL
func (pr *Projectile) Expired(now time.Time) bool {
	return now.Sub(pr.Born) > pr.TTL
}

// Hits reports whether the projectile overlaps a player circle
func (pr *Projectile) Hits(p *Player) bool {
	return Distance(pr.X, pr.Y, p.X, p.Y) < pr.Radius+PlayerRadius
}

// ProjectileState is the snapshot form of a projectile
type ProjectileState struct {
	Owner string  `json:"owner"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
	R     float64 `json:"radius"`
}

// State converts to the snapshot form
func (pr *Projectile) State() ProjectileState {
	return ProjectileState{Owner: pr.Owner, X: pr.X, Y: pr.Y, VX: pr.VX, VY: pr.VY, R: pr.Radius}
}
