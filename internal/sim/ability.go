package sim

import (
	"math"
	"time"
)

// AbilityResult is the outcome of an ability activation
type AbilityResult int

const (
	Blocked AbilityResult = iota
	Applied
)

func (r AbilityResult) String() string {
	if r == Applied {
		return "applied"
	}
	return "blocked"
}

// UseCurrentAbility activates whatever ability the actor currently holds
func (w *World) UseCurrentAbility(id string, aim *Point, now time.Time) AbilityResult {
	p, ok := w.store.Player(id)
	if !ok {
		return Blocked
	}
	return w.UseAbility(id, p.Ability, aim, now)
}

// UseAbility applies kind for the actor. It is Blocked, with no state
// touched, when the actor is missing or dead or kind is on cooldown. aim is
// the target point for blink; nil lets the engine pick one.
func (w *World) UseAbility(id string, kind AbilityKind, aim *Point, now time.Time) AbilityResult {
	actor, ok := w.store.Player(id)
	if !ok || !actor.Alive {
		return Blocked
	}
	def, ok := LookupAbility(kind)
	if !ok || !actor.AbilityReady(kind, now) {
		return Blocked
	}
	actor.LastUsed[kind] = now

	switch kind {
	case AbilityDash:
		actor.X, actor.Y = w.arena.Sweep(actor.X, actor.Y,
			math.Cos(actor.Rotation)*def.Range, math.Sin(actor.Rotation)*def.Range)
	case AbilityBlink:
		w.blink(actor, def, aim)
	case AbilityKnockback:
		w.knockback(actor, def, now)
	case AbilityShield:
		actor.Effects.Shield.Set(now.Add(def.Duration))
	case AbilitySpeed:
		actor.Effects.Speed.Set(now.Add(def.Duration))
	case AbilityGravity:
		for _, other := range w.livingOthers(actor) {
			if Distance(actor.X, actor.Y, other.X, other.Y) < def.Range {
				other.Effects.Inverted.Set(now.Add(def.Duration))
			}
		}
	case AbilityFreeze:
		w.freeze(actor, def, now)
	}

	actor.X, actor.Y = w.arena.Clamp(actor.X, actor.Y)
	w.pending.used = append(w.pending.used, AbilityUsedEvent{ID: actor.ID, Ability: kind})
	return Applied
}

func (w *World) blink(actor *Player, def AbilityDef, aim *Point) {
	var target Point
	switch {
	case aim != nil:
		target = *aim
	case actor.Bot:
		nearest := w.nearestOther(actor)
		if nearest == nil {
			return
		}
		target = Point{X: nearest.X, Y: nearest.Y}
	default:
		target = Point{
			X: actor.X + math.Cos(actor.Rotation)*def.Range,
			Y: actor.Y + math.Sin(actor.Rotation)*def.Range,
		}
	}
	dx, dy := target.X-actor.X, target.Y-actor.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		return
	}
	ratio := math.Min(1, def.Range/d)
	actor.X, actor.Y = w.arena.Land(actor.X, actor.Y, dx*ratio, dy*ratio)
}

func (w *World) knockback(actor *Player, def AbilityDef, now time.Time) {
	for _, other := range w.livingOthers(actor) {
		dx, dy := other.X-actor.X, other.Y-actor.Y
		d := math.Hypot(dx, dy)
		if d > def.Range {
			continue
		}
		ux, uy := math.Cos(actor.Rotation), math.Sin(actor.Rotation)
		if d > 0 {
			ux, uy = dx/d, dy/d
		}
		other.X, other.Y = w.arena.Sweep(other.X, other.Y, ux*KnockbackPush, uy*KnockbackPush)
		w.pending.knocked = append(w.pending.knocked, KnockedEvent{ID: other.ID, X: other.X, Y: other.Y})
		if d < KnockbackKillDist && !other.Shielded(now) {
			w.Kill(actor.ID, other.ID, now)
		}
	}
}

func (w *World) freeze(actor *Player, def AbilityDef, now time.Time) {
	for _, other := range w.livingOthers(actor) {
		if other.Shielded(now) {
			continue
		}
		d := Distance(actor.X, actor.Y, other.X, other.Y)
		if d > def.Range {
			continue
		}
		other.Effects.Frozen.Set(now.Add(def.Duration))
		other.stop()
		if d < FreezeKillDist {
			w.Kill(actor.ID, other.ID, now)
		}
	}
}

func (w *World) nearestOther(actor *Player) *Player {
	var best *Player
	bestD := math.Inf(1)
	for _, other := range w.livingOthers(actor) {
		if d := Distance(actor.X, actor.Y, other.X, other.Y); d < bestD {
			best, bestD = other, d
		}
	}
	return best
}
