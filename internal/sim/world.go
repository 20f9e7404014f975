package sim

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

var (
	ErrNoPlayer          = errors.New("sim: no such living player")
	ErrUnknownWeapon     = errors.New("sim: unknown weapon")
	ErrInsufficientCoins = errors.New("sim: not enough coins")
)

// Config parameterizes a World
type Config struct {
	Arena            Arena
	Seed             uint64 // 0 picks a time-based seed
	RotationInterval time.Duration
	RespawnDelay     time.Duration
}

// JoinSpec describes a player entering the match
type JoinSpec struct {
	ID        string
	AccountID string
	Name      string
	Team      Team
	Bot       bool
}

// World is one simulation instance: the entity store plus the rules and
// schedulers that act on it. It is not safe for concurrent use; a single
// loop goroutine owns it for the lifetime of a match.
type World struct {
	arena    Arena
	store    *Store
	rng      *rand.Rand
	rotation *RotationScheduler
	respawns *RespawnScheduler
	feed     []KillEvent
	pending  events
	tick     uint64
}

// NewWorld creates a World whose first rotation is one interval after start
func NewWorld(cfg Config, start time.Time) *World {
	if cfg.Arena.Width == 0 {
		cfg.Arena = DefaultArena()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &World{
		arena:    cfg.Arena,
		store:    NewStore(),
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		rotation: NewRotationScheduler(start, cfg.RotationInterval),
		respawns: NewRespawnScheduler(cfg.RespawnDelay),
	}
}

// Arena returns the map geometry
func (w *World) Arena() Arena { return w.arena }

// Store exposes the entity store
func (w *World) Store() *Store { return w.store }

// Tick returns the number of completed steps
func (w *World) Tick() uint64 { return w.tick }

// NextRotation returns the global rotation deadline
func (w *World) NextRotation() time.Time { return w.rotation.Deadline() }

// Rand exposes the world's random source to input sources sharing its turn
func (w *World) Rand() *rand.Rand { return w.rng }

// KillFeed returns the recent kills, newest first
func (w *World) KillFeed() []KillEvent {
	out := make([]KillEvent, len(w.feed))
	copy(out, w.feed)
	return out
}

// RespawnPending reports whether id is waiting to respawn
func (w *World) RespawnPending(id string) bool {
	return w.respawns.Pending(id)
}

// Join creates a player at a fresh spawn point with a random ability
func (w *World) Join(spec JoinSpec) *Player {
	p := NewPlayer(spec.ID, spec.Name, w.arena.FindSpawnPoint(w.rng), w.randomAbility())
	p.AccountID = spec.AccountID
	p.Team = spec.Team
	p.Bot = spec.Bot
	w.store.AddPlayer(p)
	return p
}

// Leave removes a player. Its projectiles keep flying until they expire.
func (w *World) Leave(id string) bool {
	if _, ok := w.store.Player(id); !ok {
		return false
	}
	w.store.RemovePlayer(id)
	return true
}

// SetIntent stages movement intent and facing for the next step. The
// intent vector is capped at BaseSpeed; later calls overwrite earlier ones.
func (w *World) SetIntent(id string, dx, dy, rotation float64) bool {
	p, ok := w.store.Player(id)
	if !ok || !p.Alive {
		return false
	}
	if l := math.Hypot(dx, dy); l > BaseSpeed {
		dx, dy = dx/l*BaseSpeed, dy/l*BaseSpeed
	}
	if math.IsNaN(dx) || math.IsNaN(dy) {
		dx, dy = 0, 0
	}
	p.VX, p.VY = dx, dy
	if !math.IsNaN(rotation) && !math.IsInf(rotation, 0) {
		p.Rotation = rotation
	}
	return true
}

// SetFacing updates only the facing rotation
func (w *World) SetFacing(id string, rotation float64) bool {
	p, ok := w.store.Player(id)
	if !ok || !p.Alive || math.IsNaN(rotation) || math.IsInf(rotation, 0) {
		return false
	}
	p.Rotation = rotation
	return true
}

// Shoot fires the player's weapon if it is off cooldown
func (w *World) Shoot(id string, now time.Time) bool {
	p, ok := w.store.Player(id)
	if !ok || !p.Alive || !p.WeaponReady(now) {
		return false
	}
	weapon, _ := LookupWeapon(p.Weapon)
	p.LastShot = now
	pellets := weapon.Pellets
	if pellets < 1 {
		pellets = 1
	}
	for i := 0; i < pellets; i++ {
		angle := p.Rotation
		if weapon.Spread > 0 && pellets > 1 {
			angle += (w.rng.Float64() - 0.5) * weapon.Spread
		}
		w.store.AppendProjectile(NewProjectile(p, weapon, angle, now))
	}
	return true
}

// BuyWeapon spends coins on a catalog weapon and equips it
func (w *World) BuyWeapon(id string, kind WeaponKind) error {
	p, ok := w.store.Player(id)
	if !ok {
		return ErrNoPlayer
	}
	weapon, ok := LookupWeapon(kind)
	if !ok {
		return ErrUnknownWeapon
	}
	if p.Coins < weapon.Price {
		return ErrInsufficientCoins
	}
	p.Coins -= weapon.Price
	p.Weapon = kind
	return nil
}

// ResetRound zeroes the scoreboard and re-arms every player with a pistol
func (w *World) ResetRound() {
	for _, p := range w.store.Players() {
		p.Score, p.Kills, p.Deaths, p.Coins = 0, 0, 0, 0
		p.Weapon = WeaponPistol
	}
	w.feed = nil
}

// Step advances the simulation one tick: due respawns, movement,
// projectiles, then the rotation if its deadline has elapsed.
func (w *World) Step(now time.Time) StepResult {
	w.tick++
	w.runRespawns(now)
	w.movePlayers(now)
	w.advanceProjectiles(now)

	res := StepResult{Tick: w.tick, Now: now}
	if w.rotation.Due(now) {
		ev := w.rotate(now)
		res.Rotation = &ev
	}

	res.Kills = w.pending.kills
	res.Respawns = w.pending.respawns
	res.AbilitiesUsed = w.pending.used
	res.Knocked = w.pending.knocked
	w.pending.reset()

	res.Players = w.Snapshot(now)
	res.Projectiles = w.ProjectileSnapshot()
	return res
}

// Snapshot returns the observable state of every player, ordered by id
func (w *World) Snapshot(now time.Time) []PlayerState {
	players := w.store.Players()
	out := make([]PlayerState, 0, len(players))
	for _, p := range players {
		out = append(out, p.State(now))
	}
	return out
}

// ProjectileSnapshot returns the observable state of every projectile
func (w *World) ProjectileSnapshot() []ProjectileState {
	prs := w.store.Projectiles()
	out := make([]ProjectileState, 0, len(prs))
	for _, pr := range prs {
		out = append(out, pr.State())
	}
	return out
}

func (w *World) runRespawns(now time.Time) {
	for _, id := range w.respawns.Due(now) {
		p, ok := w.store.Player(id)
		if !ok || p.Alive {
			continue
		}
		s := w.arena.FindSpawnPoint(w.rng)
		p.X, p.Y = s.X, s.Y
		p.Alive = true
		p.stop()
		p.Effects.ClearOnRespawn()
		w.pending.respawns = append(w.pending.respawns, RespawnEvent{ID: p.ID, X: p.X, Y: p.Y})
	}
}

func (w *World) rotate(now time.Time) RotationEvent {
	players := w.store.Players()
	ev := RotationEvent{Changes: make([]AbilityChange, 0, len(players))}
	for _, p := range players {
		old := p.Ability
		p.Ability = w.randomAbility()
		ev.Changes = append(ev.Changes, AbilityChange{ID: p.ID, OldAbility: old, NewAbility: p.Ability})
	}
	ev.NextRotation = w.rotation.Advance(now)
	return ev
}

func (w *World) randomAbility() AbilityKind {
	return abilityCatalog[w.rng.IntN(len(abilityCatalog))].Kind
}

func (w *World) livingOthers(actor *Player) []*Player {
	var out []*Player
	for _, p := range w.store.Players() {
		if p.ID != actor.ID && p.Alive {
			out = append(out, p)
		}
	}
	return out
}
