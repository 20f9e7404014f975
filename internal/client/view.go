// Package client is the player-side half of the game: it reconciles server
// snapshots into a render view, predicts local movement, and falls back to
// a local simulation when no server is reachable.
package client

import (
	"math"
	"sort"
	"sync"
	"time"

	"rotateio-server/internal/protocol"
	"rotateio-server/internal/sim"
)

const (
	Smoothing           = 0.3  // blend factor toward the server position per snapshot
	CorrectionThreshold = 80.0 // local prediction error that forces a snap
	killFeedSize        = sim.KillFeedSize
)

// View is the render state of one client. All methods are safe for
// concurrent use; the session goroutine writes and the UI reads.
type View struct {
	mu           sync.RWMutex
	localID      string
	players      map[string]*sim.PlayerState
	ability      sim.AbilityKind
	nextRotation time.Time
	arena        sim.Arena
	feed         []protocol.KillMsg
	effects      sim.Effects // local prediction slots

	// last local move intent, held until replaced like the server's
	intentX, intentY float64
}

// NewView returns an empty view over the default arena
func NewView() *View {
	return &View{
		players: make(map[string]*sim.PlayerState),
		arena:   sim.DefaultArena(),
	}
}

// ApplyInit replaces the roster with the join payload
func (v *View) ApplyInit(msg protocol.InitMsg) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.localID = msg.PlayerID
	v.players = make(map[string]*sim.PlayerState, len(msg.Players))
	for i := range msg.Players {
		p := msg.Players[i]
		v.players[p.ID] = &p
	}
	v.ability = msg.Ability
	v.nextRotation = time.UnixMilli(msg.NextRotation)
	if msg.ArenaSize.Width > 0 {
		v.arena = sim.Arena{Width: msg.ArenaSize.Width, Height: msg.ArenaSize.Height, Obstacles: msg.Obstacles}
	}
	v.feed = append(v.feed[:0], msg.KillFeed...)
	v.effects = sim.Effects{}
	v.intentX, v.intentY = 0, 0
}

// ApplySnapshot reconciles one gameUpdate. Remote positions are smoothed
// toward the server; discrete flags snap. The local entity keeps its
// predicted position unless the server disagrees by more than
// CorrectionThreshold.
func (v *View) ApplySnapshot(players []sim.PlayerState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, sp := range players {
		cur, ok := v.players[sp.ID]
		if !ok {
			p := sp
			v.players[sp.ID] = &p
			continue
		}
		x, y := cur.X, cur.Y
		if sp.ID == v.localID {
			if sim.Distance(x, y, sp.X, sp.Y) > CorrectionThreshold || !sp.Alive {
				x, y = sp.X, sp.Y
			}
			rotation := cur.Rotation
			*cur = sp
			cur.X, cur.Y, cur.Rotation = x, y, rotation
			if sp.Ability != "" {
				v.ability = sp.Ability
			}
			continue
		}
		x += (sp.X - x) * Smoothing
		y += (sp.Y - y) * Smoothing
		*cur = sp
		cur.X, cur.Y = x, y
	}
}

// Rebuild replaces the whole view from a local simulation step
func (v *View) Rebuild(localID string, arena sim.Arena, res sim.StepResult, nextRotation time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.localID = localID
	v.arena = arena
	v.players = make(map[string]*sim.PlayerState, len(res.Players))
	for i := range res.Players {
		p := res.Players[i]
		v.players[p.ID] = &p
		if p.ID == localID {
			v.ability = p.Ability
		}
	}
	v.nextRotation = nextRotation
	for _, k := range res.Kills {
		v.pushKill(protocol.NewKillMsg(k))
	}
}

// ApplyRespawn snaps the local entity to its respawn point
func (v *View) ApplyRespawn(x, y float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p, ok := v.players[v.localID]; ok {
		p.X, p.Y = x, y
		p.Alive = true
	}
	v.effects = sim.Effects{}
	v.intentX, v.intentY = 0, 0
}

// ApplyKnocked snaps the local entity after another player's push
func (v *View) ApplyKnocked(x, y float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p, ok := v.players[v.localID]; ok {
		p.X, p.Y = x, y
	}
}

// ApplyJoined inserts or replaces a roster entry
func (v *View) ApplyJoined(p sim.PlayerState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.players[p.ID] = &p
}

// ApplyLeft removes a roster entry
func (v *View) ApplyLeft(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.players, id)
}

// ApplyRotation updates the local ability and the rotation deadline
func (v *View) ApplyRotation(msg protocol.RotationMsg) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, c := range msg.Changes {
		if p, ok := v.players[c.ID]; ok {
			p.Ability = c.NewAbility
		}
		if c.ID == v.localID {
			v.ability = c.NewAbility
		}
	}
	v.nextRotation = time.UnixMilli(msg.NextRotation)
}

// ApplyKill pushes to the kill feed and marks the victim dead
func (v *View) ApplyKill(msg protocol.KillMsg) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p, ok := v.players[msg.Victim]; ok {
		p.Alive = false
		p.VX, p.VY = 0, 0
	}
	if msg.Victim == v.localID {
		v.intentX, v.intentY = 0, 0
	}
	v.pushKill(msg)
}

// ApplyAbilityUsed mirrors timed self-effects of the local player so that
// prediction moves at the boosted speed
func (v *View) ApplyAbilityUsed(id string, kind sim.AbilityKind, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if id != v.localID {
		return
	}
	def, ok := sim.LookupAbility(kind)
	if !ok {
		return
	}
	switch kind {
	case sim.AbilitySpeed:
		v.effects.Speed.Set(now.Add(def.Duration))
	case sim.AbilityShield:
		v.effects.Shield.Set(now.Add(def.Duration))
	}
}

// SetIntent records the local move intent, capped at base speed, and turns
// the local player at once. Movement waits for PredictTick.
func (v *View) SetIntent(dx, dy, rotation float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if l := math.Hypot(dx, dy); l > sim.BaseSpeed {
		dx, dy = dx/l*sim.BaseSpeed, dy/l*sim.BaseSpeed
	}
	v.intentX, v.intentY = dx, dy
	if p, ok := v.players[v.localID]; ok && p.Alive {
		p.Rotation = rotation
	}
}

// PredictTick advances the local player by one server tick of the held
// intent with the server's movement rules and returns the predicted position
func (v *View) PredictTick(now time.Time) (float64, float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.players[v.localID]
	if !ok || !p.Alive {
		return 0, 0, false
	}
	local := &sim.Player{Effects: v.effects}
	dx, dy := sim.EffectiveIntent(local, v.intentX, v.intentY, now)
	p.X, p.Y = v.arena.MoveWithCollision(p.X, p.Y, dx, dy)
	p.X, p.Y = v.arena.Clamp(p.X, p.Y)
	p.VX, p.VY = dx, dy
	return p.X, p.Y, true
}

func (v *View) pushKill(msg protocol.KillMsg) {
	v.feed = append([]protocol.KillMsg{msg}, v.feed...)
	if len(v.feed) > killFeedSize {
		v.feed = v.feed[:killFeedSize]
	}
}

// LocalID returns the id of the locally controlled player
func (v *View) LocalID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.localID
}

// Local returns a copy of the locally controlled player
func (v *View) Local() (sim.PlayerState, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, ok := v.players[v.localID]
	if !ok {
		return sim.PlayerState{}, false
	}
	return *p, true
}

// Player returns a copy of one roster entry
func (v *View) Player(id string) (sim.PlayerState, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, ok := v.players[id]
	if !ok {
		return sim.PlayerState{}, false
	}
	return *p, true
}

// Players returns the roster ordered by id
func (v *View) Players() []sim.PlayerState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]sim.PlayerState, 0, len(v.players))
	for _, p := range v.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Ability returns the local player's current ability
func (v *View) Ability() sim.AbilityKind {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ability
}

// NextRotation returns the announced rotation deadline
func (v *View) NextRotation() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.nextRotation
}

// Arena returns the arena geometry known to the view
func (v *View) Arena() sim.Arena {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.arena
}

// KillFeed returns the recent kills, newest first
func (v *View) KillFeed() []protocol.KillMsg {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]protocol.KillMsg, len(v.feed))
	copy(out, v.feed)
	return out
}
