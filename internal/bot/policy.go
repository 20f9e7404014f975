// Package bot drives scripted opponents through the same action API that
// network players use.
package bot

import (
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"rotateio-server/internal/sim"
)

const (
	DecisionInterval = 200 * time.Millisecond
	StandOff         = 160.0 // approach until this close, then strafe
	ApproachSpeed    = 2.2
	StrafeSpeed      = 1.2   // max, scaled by a random factor
	LeadFactor       = 0.9   // fraction of predicted target travel to lead by
	DodgeRange       = 160.0 // projectiles closer than this are dodged
	DodgeSpeed       = 4.0
	CloseRange       = 120.0 // enemies inside this make ability use likely
	IdleAbilityScale = 0.2
	ShootRange       = 480.0
	SteerTurn        = math.Pi * 0.35 // heading change when the path is blocked
)

// Difficulty scales bot aim and aggression
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty maps free text to a Difficulty, defaulting to Medium
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case Easy:
		return Easy
	case Hard:
		return Hard
	default:
		return Medium
	}
}

// AimJitter is the width of the random aim error in radians
func (d Difficulty) AimJitter() float64 {
	switch d {
	case Easy:
		return 0.32
	case Hard:
		return 0.02
	default:
		return 0.12
	}
}

// AbilityChance is the per-decision probability of using a ready ability
// with an enemy inside CloseRange
func (d Difficulty) AbilityChance() float64 {
	switch d {
	case Easy:
		return 0.18
	case Hard:
		return 0.65
	default:
		return 0.35
	}
}

// Policy is a sim.InputSource that steers every living bot in the world
// once per DecisionInterval. Intent set by one decision persists for the
// ticks in between.
type Policy struct {
	Difficulty Difficulty
	Interval   time.Duration

	last time.Time
}

// NewPolicy returns a policy deciding every DecisionInterval
func NewPolicy(d Difficulty) *Policy {
	return &Policy{Difficulty: d, Interval: DecisionInterval}
}

// Feed implements sim.InputSource
func (p *Policy) Feed(w *sim.World, now time.Time) {
	if !p.last.IsZero() && now.Sub(p.last) < p.Interval {
		return
	}
	p.last = now
	for _, b := range w.Store().Players() {
		if b.Bot && b.Alive {
			p.decide(w, b, now)
		}
	}
}

func (p *Policy) decide(w *sim.World, b *sim.Player, now time.Time) {
	rng := w.Rand()
	target, dist := nearestTarget(w, b)
	if target == nil {
		return
	}
	if dist == 0 {
		dist = 1
	}

	// lead the target by its current intent over the projectile travel time
	weapon, _ := sim.LookupWeapon(b.Weapon)
	speed := weapon.Speed
	if speed <= 0 {
		speed = 8
	}
	travel := dist / speed
	px := target.X + target.VX*travel*LeadFactor
	py := target.Y + target.VY*travel*LeadFactor
	aim := math.Atan2(py-b.Y, px-b.X) + (rng.Float64()-0.5)*p.Difficulty.AimJitter()

	heading, step := aim, ApproachSpeed
	if dist <= StandOff {
		heading, step = aim+math.Pi/2, rng.Float64()*StrafeSpeed
	}
	if w.Arena().CollidesWithMap(b.X+math.Cos(heading)*step, b.Y+math.Sin(heading)*step, sim.MoveBuffer) {
		heading += turnSign(rng) * SteerTurn
	}
	dx, dy := math.Cos(heading)*step, math.Sin(heading)*step

	if pr := incoming(w, b); pr != nil {
		perp := math.Pi / 2
		if pr.VX != 0 {
			perp += math.Atan2(pr.VY, pr.VX)
		}
		dx, dy = math.Cos(perp)*DodgeSpeed, math.Sin(perp)*DodgeSpeed
	}
	w.SetIntent(b.ID, dx, dy, aim)

	if b.AbilityReady(b.Ability, now) {
		chance := p.Difficulty.AbilityChance()
		if !enemyWithin(w, b, CloseRange) {
			chance *= IdleAbilityScale
		}
		if rng.Float64() < chance {
			w.UseCurrentAbility(b.ID, nil, now)
		}
	}

	// an ability may have moved the bot or killed its target
	if b.Alive && dist < ShootRange && b.WeaponReady(now) {
		w.Shoot(b.ID, now)
	}
}

func nearestTarget(w *sim.World, b *sim.Player) (*sim.Player, float64) {
	var best *sim.Player
	bestD := math.Inf(1)
	for _, o := range w.Store().Players() {
		if o.ID == b.ID || !o.Alive || b.Team.Allied(o.Team) {
			continue
		}
		if d := sim.Distance(b.X, b.Y, o.X, o.Y); d < bestD {
			best, bestD = o, d
		}
	}
	return best, bestD
}

// incoming returns the first projectile moving toward b within DodgeRange
func incoming(w *sim.World, b *sim.Player) *sim.Projectile {
	for _, pr := range w.Store().Projectiles() {
		if pr.Owner == b.ID {
			continue
		}
		if owner, ok := w.Store().Player(pr.Owner); ok && b.Team.Allied(owner.Team) {
			continue
		}
		rx, ry := b.X-pr.X, b.Y-pr.Y
		if pr.VX*rx+pr.VY*ry > 0 && math.Hypot(rx, ry) < DodgeRange {
			return pr
		}
	}
	return nil
}

func enemyWithin(w *sim.World, b *sim.Player, r float64) bool {
	for _, o := range w.Store().Players() {
		if o.ID == b.ID || !o.Alive || b.Team.Allied(o.Team) {
			continue
		}
		if sim.Distance(b.X, b.Y, o.X, o.Y) < r {
			return true
		}
	}
	return false
}

func turnSign(rng *rand.Rand) float64 {
	if rng.Float64() > 0.5 {
		return 1
	}
	return -1
}
