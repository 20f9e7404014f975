package client

import (
	"context"
	"sync"
	"time"

	"rotateio-server/internal/bot"
	"rotateio-server/internal/sim"
)

// LocalID is the player id used by the offline simulation
const LocalID = "local"

// OfflineConfig selects the offline match
type OfflineConfig struct {
	Mode       bot.Mode
	Difficulty bot.Difficulty
	Name       string
	Tick       time.Duration
	Seed       uint64
}

type localAction struct {
	kind   string
	aim    *sim.Point
	weapon sim.WeaponKind
}

// Offline runs the full ruleset locally with bots as opponents. The local
// player is driven through the same action API the server uses.
type Offline struct {
	cfg   OfflineConfig
	view  *View
	world *sim.World
	loop  *sim.Loop

	mu      sync.Mutex
	intent  *[3]float64
	actions []localAction
}

// NewOffline builds the world, joins the local player and the bot roster,
// and wires the loop to rebuild view after every step
func NewOffline(cfg OfflineConfig, view *View, now time.Time) *Offline {
	if cfg.Tick <= 0 {
		cfg.Tick = 60 * time.Millisecond
	}
	if cfg.Name == "" {
		cfg.Name = "You"
	}
	o := &Offline{cfg: cfg, view: view}
	o.world = sim.NewWorld(sim.Config{Seed: cfg.Seed}, now)
	o.world.Join(sim.JoinSpec{ID: LocalID, Name: cfg.Name, Team: cfg.Mode.LocalTeam()})
	for _, spec := range bot.Roster(cfg.Mode, bot.Count(cfg.Mode, cfg.Difficulty)) {
		o.world.Join(spec)
	}
	o.loop = &sim.Loop{
		World:  o.world,
		Inputs: []sim.InputSource{o, bot.NewPolicy(cfg.Difficulty)},
		OnStep: func(res sim.StepResult) {
			o.view.Rebuild(LocalID, o.world.Arena(), res, o.world.NextRotation())
		},
	}
	o.view.Rebuild(LocalID, o.world.Arena(), sim.StepResult{Players: o.world.Snapshot(now)}, o.world.NextRotation())
	return o
}

// Run drives the simulation on a cooperative ticker until ctx ends
func (o *Offline) Run(ctx context.Context) error {
	o.loop.Ticks = sim.NewTicker(o.cfg.Tick)
	return o.loop.Run(ctx)
}

// Step advances one tick by hand
func (o *Offline) Step(now time.Time) sim.StepResult {
	return o.loop.Tick(now)
}

// World exposes the local simulation
func (o *Offline) World() *sim.World { return o.world }

// Move stages movement intent; the latest call before a tick wins
func (o *Offline) Move(dx, dy, rotation float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.intent = &[3]float64{dx, dy, rotation}
}

// Shoot stages a shot
func (o *Offline) Shoot() { o.stage(localAction{kind: "shoot"}) }

// UseAbility stages the current ability
func (o *Offline) UseAbility(aim *sim.Point) { o.stage(localAction{kind: "ability", aim: aim}) }

// BuyWeapon stages a purchase
func (o *Offline) BuyWeapon(kind sim.WeaponKind) { o.stage(localAction{kind: "buy", weapon: kind}) }

func (o *Offline) stage(a localAction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.actions = append(o.actions, a)
}

// Feed implements sim.InputSource for the local player
func (o *Offline) Feed(w *sim.World, now time.Time) {
	o.mu.Lock()
	intent, actions := o.intent, o.actions
	o.intent, o.actions = nil, nil
	o.mu.Unlock()

	if intent != nil {
		w.SetIntent(LocalID, intent[0], intent[1], intent[2])
	}
	for _, a := range actions {
		switch a.kind {
		case "shoot":
			w.Shoot(LocalID, now)
		case "ability":
			w.UseCurrentAbility(LocalID, a.aim, now)
		case "buy":
			_ = w.BuyWeapon(LocalID, a.weapon)
		}
	}
}
