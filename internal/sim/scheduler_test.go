package sim

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotationSchedulerCatchesUpOnce(t *testing.T) {
	r := NewRotationScheduler(t0, 0)
	assert.Equal(t, RotationInterval, r.Interval())
	assert.False(t, r.Due(t0.Add(9*time.Second)))
	assert.True(t, r.Due(t0.Add(10*time.Second)))

	// a loop stalled for 35s rotates once and lands back on the 10s grid
	next := r.Advance(t0.Add(35 * time.Second))
	assert.Equal(t, t0.Add(40*time.Second), next)
	assert.False(t, r.Due(t0.Add(35*time.Second)))

	r.Reset(t0.Add(time.Minute))
	assert.Equal(t, t0.Add(70*time.Second), r.Deadline())
}

func TestRespawnSchedulerOrder(t *testing.T) {
	r := NewRespawnScheduler(0)
	r.Schedule("b", t0)
	r.Schedule("a", t0.Add(time.Second))
	r.Schedule("c", t0.Add(100*time.Millisecond))
	assert.Equal(t, 3, r.Len())
	assert.True(t, r.Pending("a"))

	assert.Empty(t, r.Due(t0.Add(1999*time.Millisecond)))
	assert.Equal(t, []string{"b", "c"}, r.Due(t0.Add(2100*time.Millisecond)))
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.Pending("b"))
	assert.Equal(t, []string{"a"}, r.Due(t0.Add(time.Hour)))
	assert.Zero(t, r.Len())
}

func TestEffectWindow(t *testing.T) {
	var e Effect
	assert.False(t, e.Active(t0))
	e.Set(t0.Add(time.Second))
	assert.True(t, e.Active(t0))
	assert.False(t, e.Active(t0.Add(time.Second)), "expires at exactly Until")
	e.Clear()
	assert.False(t, e.Active(t0))
}

func TestStoreProjectileRemovalKeepsOrder(t *testing.T) {
	s := NewStore()
	for i := 0; i < 4; i++ {
		s.AppendProjectile(&Projectile{X: float64(i)})
	}
	s.RemoveProjectile(1)
	prs := s.Projectiles()
	require.Len(t, prs, 3)
	assert.Equal(t, []float64{0, 2, 3}, []float64{prs[0].X, prs[1].X, prs[2].X})
}

func TestFindSpawnPointSkipsBlockedPoints(t *testing.T) {
	a := Arena{
		Width:       1600,
		Height:      900,
		Obstacles:   []Rect{{X: 0, Y: 0, W: 200, H: 200}},
		SpawnPoints: []Point{{X: 100, Y: 100}, {X: 1000, Y: 500}},
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		assert.Equal(t, Point{X: 1000, Y: 500}, a.FindSpawnPoint(rng))
	}

	a.SpawnPoints = nil
	p := a.FindSpawnPoint(rng)
	assert.False(t, a.CollidesWithMap(p.X, p.Y, SpawnBuffer))
	assert.GreaterOrEqual(t, p.X, 80.0)
	assert.LessOrEqual(t, p.X, 1520.0)
}

func TestFindSpawnPointFallsBack(t *testing.T) {
	a := Arena{Width: 1600, Height: 900, Obstacles: []Rect{{X: -100, Y: -100, W: 2000, H: 1200}}}
	assert.Equal(t, Point{X: 100, Y: 100}, a.FindSpawnPoint(rand.New(rand.NewPCG(1, 2))))
}

func TestMoveWithCollisionSlidesAlongWalls(t *testing.T) {
	a := Arena{Width: 1600, Height: 900, Obstacles: []Rect{{X: 300, Y: 0, W: 100, H: 900}}}

	// blocked on X, still free on Y
	x, y := a.MoveWithCollision(285, 400, 3, 3)
	assert.Equal(t, 285.0, x)
	assert.Equal(t, 403.0, y)

	x, y = a.MoveWithCollision(100, 100, -200, 0)
	assert.Equal(t, MoveMargin, x)
	assert.Equal(t, 100.0, y)
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, 0.0, NormalizeAngle(4*3.141592653589793), 1e-9)
	assert.InDelta(t, -1.0, NormalizeAngle(-1), 1e-9)
}

func TestTeamAllied(t *testing.T) {
	assert.False(t, TeamNone.Allied(TeamNone))
	assert.True(t, TeamRed.Allied(TeamRed))
	assert.False(t, TeamRed.Allied(TeamBlue))
}

type manualTicks struct {
	c       chan time.Time
	stopped bool
}

func (m *manualTicks) Ticks() <-chan time.Time { return m.c }
func (m *manualTicks) Stop()                   { m.stopped = true }

func TestLoopFeedsInputsBeforeStepping(t *testing.T) {
	w := newTestWorld()
	place(w, "a", 400, 450)

	var order []string
	var results []StepResult
	ticks := &manualTicks{c: make(chan time.Time)}
	loop := &Loop{
		World: w,
		Ticks: ticks,
		Inputs: []InputSource{
			InputFunc(func(w *World, now time.Time) {
				order = append(order, "feed")
				w.SetIntent("a", 3, 0, 0)
			}),
		},
		OnStep: func(res StepResult) {
			order = append(order, "step")
			results = append(results, res)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	ticks.c <- t0.Add(tickPeriod)
	ticks.c <- t0.Add(2 * tickPeriod)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	assert.True(t, ticks.stopped)
	assert.Equal(t, []string{"feed", "step", "feed", "step"}, order)
	require.Len(t, results, 2)
	assert.Equal(t, uint64(2), results[1].Tick)
	assert.Equal(t, 406.0, results[1].Players[0].X)
}
