package sim

import (
	"math"
	"time"
)

// EffectiveIntent applies the status slots to a raw intent vector: frozen
// zeroes it, inverted negates it, speed boost scales it.
func EffectiveIntent(p *Player, dx, dy float64, now time.Time) (float64, float64) {
	if p.Effects.Frozen.Active(now) {
		return 0, 0
	}
	if p.Effects.Inverted.Active(now) {
		dx, dy = -dx, -dy
	}
	if p.Effects.Speed.Active(now) {
		dx *= SpeedMultiplier
		dy *= SpeedMultiplier
	}
	return dx, dy
}

// MoveWithCollision moves (x,y) by (dx,dy), X axis first then Y. An axis
// whose move would enter an obstacle is skipped; each accepted axis is
// clamped to the movement margin. A position already overlapping an
// obstacle accepts any move so the player can walk back out.
func (a Arena) MoveWithCollision(x, y, dx, dy float64) (float64, float64) {
	escaping := a.CollidesWithMap(x, y, MoveBuffer)
	if dx != 0 {
		nx := x + dx
		if escaping || !a.CollidesWithMap(nx, y, MoveBuffer) {
			x = Clamp(nx, MoveMargin, a.Width-MoveMargin)
		}
	}
	if dy != 0 {
		ny := y + dy
		if escaping || !a.CollidesWithMap(x, ny, MoveBuffer) {
			y = Clamp(ny, MoveMargin, a.Height-MoveMargin)
		}
	}
	return x, y
}

// sweepStep is the largest advance between two collision samples
const sweepStep = 4.0

// Sweep slides (x,y) along (dx,dy) and stops at the last clamped sample clear
// of obstacles. Dash and knockback travel this way.
func (a Arena) Sweep(x, y, dx, dy float64) (float64, float64) {
	n := sweepSamples(dx, dy)
	cx, cy := x, y
	for i := 1; i <= n; i++ {
		f := float64(i) / float64(n)
		nx, ny := a.Clamp(x+dx*f, y+dy*f)
		if a.CollidesWithMap(nx, ny, MoveBuffer) {
			break
		}
		cx, cy = nx, ny
	}
	return cx, cy
}

// Land teleports (x,y) by (dx,dy). A landing inside an obstacle backs off
// toward the origin until it is clear; with no clear sample the origin stays.
func (a Arena) Land(x, y, dx, dy float64) (float64, float64) {
	n := sweepSamples(dx, dy)
	for i := n; i >= 1; i-- {
		f := float64(i) / float64(n)
		nx, ny := a.Clamp(x+dx*f, y+dy*f)
		if !a.CollidesWithMap(nx, ny, MoveBuffer) {
			return nx, ny
		}
	}
	return x, y
}

func sweepSamples(dx, dy float64) int {
	return max(1, int(math.Ceil(math.Hypot(dx, dy)/sweepStep)))
}

func (w *World) movePlayers(now time.Time) {
	for _, p := range w.store.Players() {
		if !p.Alive {
			continue
		}
		dx, dy := EffectiveIntent(p, p.VX, p.VY, now)
		p.X, p.Y = w.arena.MoveWithCollision(p.X, p.Y, dx, dy)
		p.X, p.Y = w.arena.Clamp(p.X, p.Y)
	}
}

// advanceProjectiles integrates every projectile and resolves, in order,
// player hits, obstacle hits, then expiry and bounds exit.
func (w *World) advanceProjectiles(now time.Time) {
	players := w.store.Players()
	prs := w.store.Projectiles()
	for i := len(prs) - 1; i >= 0; i-- {
		pr := prs[i]
		pr.Update()

		owner, hasOwner := w.store.Player(pr.Owner)
		removed := false
		for _, p := range players {
			if !p.Alive || p.ID == pr.Owner {
				continue
			}
			if hasOwner && owner.Team.Allied(p.Team) {
				continue
			}
			if pr.Hits(p) {
				w.Kill(pr.Owner, p.ID, now)
				removed = true
				break
			}
		}
		if !removed && w.arena.InsideObstacle(pr.X, pr.Y) {
			removed = true
		}
		if removed || pr.Expired(now) || w.arena.OutOfBounds(pr.X, pr.Y, ProjectileMargin) {
			w.store.RemoveProjectile(i)
		}
	}
}
