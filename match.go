package main

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rotateio-server/internal/bot"
	"rotateio-server/internal/protocol"
	"rotateio-server/internal/sim"
)

const (
	MainMatchID        = "main"
	replaySize         = 2000
	maxPlayersPerMatch = 100
)

var (
	ErrMatchFull    = errors.New("match full")
	ErrMatchStopped = errors.New("match stopped")
)

// Broadcaster is the send side of one connection. Sends never block; they
// report false when the frame was dropped.
type Broadcaster interface {
	SendJSON(msg any) bool
	SendRaw(data []byte) bool
	SendBinary(data []byte) bool
	WantsBinary() bool
}

// MatchConfig parameterizes a Match
type MatchConfig struct {
	ID         string
	Mode       bot.Mode
	Tick       time.Duration
	Duration   time.Duration // 0 is endless
	Bots       int
	Difficulty bot.Difficulty
	Roster     []protocol.RosterEntry
	Seed       uint64
}

type memberOp struct {
	join   bool
	spec   sim.JoinSpec
	client Broadcaster
}

type action struct {
	player  string
	kind    string
	ability protocol.AbilityMsg
	weapon  sim.WeaponKind
}

// Match is one authoritative game: a sim.World driven by a sim.Loop.
// Network handlers only stage input; the loop goroutine applies it at the
// start of the next tick and is the only writer of the world.
type Match struct {
	cfg      MatchConfig
	log      zerolog.Logger
	metrics  *Metrics
	recorder *Recorder

	world      *sim.World
	loop       *sim.Loop
	roster     map[string]sim.Team // account id -> team
	clients    map[string]Broadcaster
	roundStart time.Time

	mu      sync.Mutex
	members int
	stopped bool
	ops     []memberOp
	moves   map[string]protocol.MoveMsg
	actions []action

	replayMu   sync.Mutex
	replay     []protocol.ReplayEntry
	replayNext int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMatch creates a match whose first tick is at or after now
func NewMatch(cfg MatchConfig, log zerolog.Logger, metrics *Metrics, recorder *Recorder, now time.Time) *Match {
	if cfg.Tick <= 0 {
		cfg.Tick = 60 * time.Millisecond
	}
	m := &Match{
		cfg:        cfg,
		log:        log.With().Str("match", cfg.ID).Logger(),
		metrics:    metrics,
		recorder:   recorder,
		world:      sim.NewWorld(sim.Config{Seed: cfg.Seed}, now),
		roster:     make(map[string]sim.Team, len(cfg.Roster)),
		clients:    make(map[string]Broadcaster),
		roundStart: now,
		moves:      make(map[string]protocol.MoveMsg),
		replay:     make([]protocol.ReplayEntry, 0, replaySize),
		done:       make(chan struct{}),
	}
	for _, e := range cfg.Roster {
		m.roster[e.AccountID] = e.Team
	}

	inputs := []sim.InputSource{m}
	if cfg.Bots > 0 {
		for _, spec := range bot.Roster(cfg.Mode, cfg.Bots) {
			m.world.Join(spec)
		}
		inputs = append(inputs, bot.NewPolicy(cfg.Difficulty))
	}
	m.loop = &sim.Loop{World: m.world, Inputs: inputs, OnStep: m.onStep}
	return m
}

// ID returns the match id
func (m *Match) ID() string { return m.cfg.ID }

// Start runs the loop on its own goroutine until Stop or ctx ends
func (m *Match) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.loop.Ticks = sim.NewTicker(m.cfg.Tick)
	go func() {
		defer close(m.done)
		if err := m.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Error().Err(err).Msg("loop stopped")
		}
	}()
	m.log.Info().Str("mode", string(m.cfg.Mode)).Dur("tick", m.cfg.Tick).Int("bots", m.cfg.Bots).Msg("match started")
}

// Stop terminates the loop and waits for it
func (m *Match) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

// PlayerCount returns the number of human players joined or joining
func (m *Match) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members
}

// Info describes the match for listings
func (m *Match) Info() protocol.MatchInfo {
	return protocol.MatchInfo{ID: m.cfg.ID, Mode: string(m.cfg.Mode), Players: m.PlayerCount()}
}

// Join stages a player; it enters the world and receives init at the next tick
func (m *Match) Join(spec sim.JoinSpec, client Broadcaster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrMatchStopped
	}
	if m.members >= maxPlayersPerMatch {
		return ErrMatchFull
	}
	m.members++
	m.ops = append(m.ops, memberOp{join: true, spec: spec, client: client})
	return nil
}

// Leave stages a departure
func (m *Match) Leave(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members--
	delete(m.moves, id)
	m.ops = append(m.ops, memberOp{spec: sim.JoinSpec{ID: id}})
}

// Move stages movement intent; the latest message before a tick wins
func (m *Match) Move(id string, msg protocol.MoveMsg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moves[id] = msg
}

// Shoot stages a shot
func (m *Match) Shoot(id string) {
	m.stage(action{player: id, kind: protocol.MsgShoot})
}

// UseAbility stages an ability activation
func (m *Match) UseAbility(id string, msg protocol.AbilityMsg) {
	m.stage(action{player: id, kind: protocol.MsgUseAbility, ability: msg})
}

// BuyWeapon stages a shop purchase
func (m *Match) BuyWeapon(id string, kind sim.WeaponKind) {
	m.stage(action{player: id, kind: protocol.MsgBuyWeapon, weapon: kind})
}

func (m *Match) stage(a action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
}

// Replay returns the recorded inputs, oldest first
func (m *Match) Replay() []protocol.ReplayEntry {
	m.replayMu.Lock()
	defer m.replayMu.Unlock()
	out := make([]protocol.ReplayEntry, 0, len(m.replay))
	if len(m.replay) < replaySize {
		return append(out, m.replay...)
	}
	out = append(out, m.replay[m.replayNext:]...)
	return append(out, m.replay[:m.replayNext]...)
}

func (m *Match) record(p *sim.Player, input string, data any, now time.Time) {
	e := protocol.ReplayEntry{T: now.UnixMilli(), Player: p.ID, X: p.X, Y: p.Y, Input: input, Data: data}
	m.replayMu.Lock()
	defer m.replayMu.Unlock()
	if len(m.replay) < replaySize {
		m.replay = append(m.replay, e)
		return
	}
	m.replay[m.replayNext] = e
	m.replayNext = (m.replayNext + 1) % replaySize
}

// Feed implements sim.InputSource: membership changes first, then the
// latest move per player, then queued actions in arrival order
func (m *Match) Feed(w *sim.World, now time.Time) {
	m.mu.Lock()
	ops, moves, actions := m.ops, m.moves, m.actions
	m.ops, m.actions = nil, nil
	m.moves = make(map[string]protocol.MoveMsg, len(moves))
	m.mu.Unlock()

	for _, op := range ops {
		if op.join {
			m.applyJoin(w, op, now)
		} else {
			m.applyLeave(w, op.spec.ID)
		}
	}
	for id, mv := range moves {
		if !w.SetIntent(id, mv.DX, mv.DY, mv.Rotation) {
			continue
		}
		if p, ok := w.Store().Player(id); ok {
			m.record(p, protocol.MsgMove, mv, now)
		}
	}
	for _, a := range actions {
		m.applyAction(w, a, now)
	}
}

func (m *Match) applyJoin(w *sim.World, op memberOp, now time.Time) {
	spec := op.spec
	spec.Team = m.assignTeam(w, spec.AccountID)
	p := w.Join(spec)
	m.clients[p.ID] = op.client

	feed := w.KillFeed()
	kills := make([]protocol.KillMsg, 0, len(feed))
	for _, k := range feed {
		kills = append(kills, protocol.NewKillMsg(k))
	}
	arena := w.Arena()
	op.client.SendJSON(protocol.Envelope{T: protocol.MsgInit, Data: protocol.InitMsg{
		PlayerID:     p.ID,
		MatchID:      m.cfg.ID,
		Players:      w.Snapshot(now),
		Ability:      p.Ability,
		NextRotation: w.NextRotation().UnixMilli(),
		ArenaSize:    protocol.ArenaSize{Width: arena.Width, Height: arena.Height},
		Obstacles:    arena.Obstacles,
		Abilities:    sim.Abilities(),
		Weapons:      sim.Weapons(),
		KillFeed:     kills,
	}})
	m.broadcastExcept(p.ID, protocol.Envelope{T: protocol.MsgPlayerJoined, Data: p.State(now)})
	m.log.Debug().Str("player", p.ID).Str("account", p.AccountID).Int("team", int(p.Team)).Msg("joined")
}

func (m *Match) applyLeave(w *sim.World, id string) {
	delete(m.clients, id)
	if !w.Leave(id) {
		return
	}
	m.broadcast(protocol.Envelope{T: protocol.MsgPlayerLeft, Data: protocol.PlayerLeftMsg{ID: id}})
	m.log.Debug().Str("player", id).Msg("left")
}

// assignTeam applies the allocator roster, then falls back to the mode:
// no teams in FFA, the human side in 1v50, the smaller side in 20v20
func (m *Match) assignTeam(w *sim.World, accountID string) sim.Team {
	if team, ok := m.roster[accountID]; ok && accountID != "" {
		return team
	}
	switch m.cfg.Mode {
	case bot.OneVsFifty:
		return sim.TeamRed
	case bot.TwentyVs20:
		red, blue := 0, 0
		for _, p := range w.Store().Players() {
			switch p.Team {
			case sim.TeamRed:
				red++
			case sim.TeamBlue:
				blue++
			}
		}
		if red <= blue {
			return sim.TeamRed
		}
		return sim.TeamBlue
	}
	return sim.TeamNone
}

func (m *Match) applyAction(w *sim.World, a action, now time.Time) {
	p, ok := w.Store().Player(a.player)
	if !ok {
		return
	}
	switch a.kind {
	case protocol.MsgShoot:
		if w.Shoot(a.player, now) {
			m.record(p, a.kind, nil, now)
		}
	case protocol.MsgUseAbility:
		if a.ability.Rotation != nil {
			w.SetFacing(a.player, *a.ability.Rotation)
		}
		kind := p.Ability
		if w.UseCurrentAbility(a.player, a.ability.Aim(), now) == sim.Applied {
			m.record(p, a.kind, kind, now)
		}
	case protocol.MsgBuyWeapon:
		client := m.clients[a.player]
		if err := w.BuyWeapon(a.player, a.weapon); err != nil {
			if client != nil {
				client.SendJSON(protocol.Envelope{T: protocol.MsgError, Data: protocol.ErrorMsg{Msg: err.Error()}})
			}
			return
		}
		m.record(p, a.kind, a.weapon, now)
		if client != nil {
			client.SendJSON(protocol.Envelope{T: protocol.MsgWeaponBought, Data: protocol.WeaponBoughtMsg{Weapon: p.Weapon, Coins: p.Coins}})
		}
	}
}

// onStep fans one tick out to the connections: events first, then the
// snapshot. Slow clients drop frames; the loop never waits.
func (m *Match) onStep(res sim.StepResult) {
	if m.metrics != nil {
		m.metrics.RecordStep(m.cfg.ID, res)
	}

	for _, k := range res.Kills {
		m.broadcast(protocol.Envelope{T: protocol.MsgPlayerKilled, Data: protocol.NewKillMsg(k)})
		if m.recorder != nil {
			m.recorder.RecordKill(m.cfg.ID, k)
		}
	}
	for _, r := range res.Respawns {
		m.sendTo(r.ID, protocol.Envelope{T: protocol.MsgRespawn, Data: protocol.PositionMsg{X: r.X, Y: r.Y}})
	}
	for _, u := range res.AbilitiesUsed {
		m.broadcast(protocol.Envelope{T: protocol.MsgAbilityUsed, Data: u})
	}
	for _, k := range res.Knocked {
		m.sendTo(k.ID, protocol.Envelope{T: protocol.MsgKnocked, Data: protocol.PositionMsg{X: k.X, Y: k.Y}})
	}
	if res.Rotation != nil {
		m.broadcast(protocol.Envelope{T: protocol.MsgAbilityRotated, Data: protocol.RotationMsg{
			Changes:      res.Rotation.Changes,
			NextRotation: res.Rotation.NextRotation.UnixMilli(),
		}})
	}

	m.broadcastState(res)

	if m.cfg.Duration > 0 && !res.Now.Before(m.roundStart.Add(m.cfg.Duration)) {
		m.endRound(res.Now)
	}
}

// broadcastState sends the snapshot, marshaling each encoding at most once
func (m *Match) broadcastState(res sim.StepResult) {
	update := protocol.GameUpdate{Tick: res.Tick, Players: res.Players, Projectiles: res.Projectiles}
	var text, bin []byte
	for _, c := range m.clients {
		var ok bool
		if c.WantsBinary() {
			if bin == nil {
				var err error
				if bin, err = protocol.EncodeBinary(update); err != nil {
					m.log.Error().Err(err).Msg("encode binary state")
					return
				}
			}
			ok = c.SendBinary(bin)
		} else {
			if text == nil {
				var err error
				if text, err = json.Marshal(protocol.Envelope{T: protocol.MsgGameUpdate, Data: update}); err != nil {
					m.log.Error().Err(err).Msg("marshal state")
					return
				}
			}
			ok = c.SendRaw(text)
		}
		if !ok && m.metrics != nil {
			m.metrics.FrameDropped(m.cfg.ID)
		}
	}
}

// endRound publishes the scoreboard, records the round, and starts a new
// one with zeroed scores
func (m *Match) endRound(now time.Time) {
	players := m.world.Store().Players()
	rows := make([]ScoreRow, 0, len(players))
	for _, p := range players {
		rows = append(rows, ScoreRow{
			ScoreEntry: protocol.ScoreEntry{ID: p.ID, Name: p.Name, Team: p.Team, Score: p.Score, Kills: p.Kills, Deaths: p.Deaths},
			AccountID:  p.AccountID,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })

	board := make([]protocol.ScoreEntry, len(rows))
	for i, r := range rows {
		board[i] = r.ScoreEntry
	}
	m.broadcast(protocol.Envelope{T: protocol.MsgMatchOver, Data: protocol.MatchOverMsg{MatchID: m.cfg.ID, Scoreboard: board}})

	if m.recorder != nil {
		m.recorder.RecordMatch(MatchResult{
			MatchID:  m.cfg.ID,
			Mode:     string(m.cfg.Mode),
			Duration: now.Sub(m.roundStart),
			EndedAt:  now,
			Players:  rows,
		})
	}
	m.log.Info().Int("players", len(rows)).Msg("round over")

	m.world.ResetRound()
	m.roundStart = now
}

func (m *Match) broadcast(msg protocol.Envelope) {
	m.broadcastExcept("", msg)
}

func (m *Match) broadcastExcept(skip string, msg protocol.Envelope) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.log.Error().Err(err).Str("t", msg.T).Msg("marshal")
		return
	}
	for id, c := range m.clients {
		if id == skip {
			continue
		}
		if !c.SendRaw(data) && m.metrics != nil {
			m.metrics.FrameDropped(m.cfg.ID)
		}
	}
}

func (m *Match) sendTo(id string, msg protocol.Envelope) {
	if c, ok := m.clients[id]; ok {
		c.SendJSON(msg)
	}
}
