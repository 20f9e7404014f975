package bot

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotateio-server/internal/sim"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newWorld() *sim.World {
	arena := sim.Arena{Width: 1600, Height: 900, SpawnPoints: []sim.Point{{X: 800, Y: 450}}}
	return sim.NewWorld(sim.Config{Arena: arena, Seed: 9}, t0)
}

func addBot(w *sim.World, id string, x, y float64) *sim.Player {
	p := w.Join(sim.JoinSpec{ID: id, Name: id, Bot: true})
	p.X, p.Y = x, y
	p.LastUsed[p.Ability] = t0 // keep abilities out of the way
	return p
}

func addHuman(w *sim.World, id string, x, y float64) *sim.Player {
	p := w.Join(sim.JoinSpec{ID: id, Name: id})
	p.X, p.Y = x, y
	return p
}

func TestPolicyApproachesAimsAndShoots(t *testing.T) {
	w := newWorld()
	b := addBot(w, "bot-0", 400, 450)
	h := addHuman(w, "h", 800, 450)

	NewPolicy(Hard).Feed(w, t0)

	assert.InDelta(t, 0, b.Rotation, 0.02)
	assert.InDelta(t, ApproachSpeed, b.VX, 0.01)
	assert.Equal(t, t0, b.LastShot)
	require.Len(t, w.Store().Projectiles(), 1)
	assert.Zero(t, h.VX, "humans are not driven")
}

func TestPolicyLeadsMovingTarget(t *testing.T) {
	w := newWorld()
	b := addBot(w, "bot-0", 400, 450)
	addHuman(w, "h", 800, 450)
	w.SetIntent("h", 0, 3, 0)

	NewPolicy(Hard).Feed(w, t0)

	// pistol travel 400/9 ticks, led by 0.9 of the target drift
	want := math.Atan2(3*400.0/9*LeadFactor, 400)
	assert.InDelta(t, want, b.Rotation, 0.02)
}

func TestPolicySkipsTeammates(t *testing.T) {
	w := newWorld()
	b := w.Join(sim.JoinSpec{ID: "bot-0", Bot: true, Team: sim.TeamRed})
	b.X, b.Y = 800, 450
	b.LastUsed[b.Ability] = t0
	mate := w.Join(sim.JoinSpec{ID: "mate", Team: sim.TeamRed})
	mate.X, mate.Y = 900, 450
	enemy := w.Join(sim.JoinSpec{ID: "enemy", Team: sim.TeamBlue})
	enemy.X, enemy.Y = 800, 750

	NewPolicy(Hard).Feed(w, t0)

	assert.InDelta(t, math.Pi/2, b.Rotation, 0.05, "aims past the closer teammate")
	assert.InDelta(t, ApproachSpeed, b.VY, 0.01)
	assert.InDelta(t, 0, b.VX, 0.05)
}

func TestPolicyIgnoresTeammateProjectiles(t *testing.T) {
	w := newWorld()
	b := w.Join(sim.JoinSpec{ID: "bot-0", Bot: true, Team: sim.TeamRed})
	b.X, b.Y = 800, 450
	b.LastUsed[b.Ability] = t0
	mate := w.Join(sim.JoinSpec{ID: "mate", Team: sim.TeamRed})
	mate.X, mate.Y, mate.Rotation = 700, 450, 0
	require.True(t, w.Shoot("mate", t0))
	enemy := w.Join(sim.JoinSpec{ID: "enemy", Team: sim.TeamBlue})
	enemy.X, enemy.Y = 800, 150

	NewPolicy(Hard).Feed(w, t0)

	// a dodge would step south, across the friendly shot
	assert.InDelta(t, -ApproachSpeed, b.VY, 0.01)
}

func TestPolicyStrafesInsideStandOff(t *testing.T) {
	w := newWorld()
	b := addBot(w, "bot-0", 400, 450)
	addHuman(w, "h", 500, 450)

	NewPolicy(Hard).Feed(w, t0)

	assert.InDelta(t, 0, b.VX, 0.05)
	assert.GreaterOrEqual(t, b.VY, 0.0)
	assert.LessOrEqual(t, b.VY, StrafeSpeed)
}

func TestPolicyDodgesIncomingProjectile(t *testing.T) {
	w := newWorld()
	b := addBot(w, "bot-0", 400, 450)
	addHuman(w, "h", 1400, 800)
	w.Store().AppendProjectile(&sim.Projectile{Owner: "h", X: 300, Y: 450, VX: 9, Born: t0, TTL: time.Second, Radius: 6})

	NewPolicy(Medium).Feed(w, t0)

	assert.InDelta(t, 0, b.VX, 1e-9)
	assert.InDelta(t, sim.BaseSpeed, b.VY, 1e-9, "dodge intent is capped at base speed")
}

func TestPolicyIgnoresOwnProjectiles(t *testing.T) {
	w := newWorld()
	b := addBot(w, "bot-0", 400, 450)
	addHuman(w, "h", 800, 450)
	w.Store().AppendProjectile(&sim.Projectile{Owner: "bot-0", X: 300, Y: 450, VX: 9, Born: t0, TTL: time.Second, Radius: 6})

	NewPolicy(Hard).Feed(w, t0)
	assert.Greater(t, b.VX, 2.0)
}

func TestPolicyDecidesOncePerInterval(t *testing.T) {
	w := newWorld()
	b := addBot(w, "bot-0", 400, 450)
	addHuman(w, "h", 800, 450)
	p := NewPolicy(Hard)

	p.Feed(w, t0)
	w.SetIntent("bot-0", 0, 0, 0)

	p.Feed(w, t0.Add(100*time.Millisecond))
	assert.Zero(t, b.VX)

	p.Feed(w, t0.Add(DecisionInterval))
	assert.Greater(t, b.VX, 0.0)
	assert.Len(t, w.Store().Projectiles(), 1, "pistol still on cooldown")
}

func TestPolicyIdlesWithoutTargets(t *testing.T) {
	w := newWorld()
	b := addBot(w, "bot-0", 400, 450)

	NewPolicy(Hard).Feed(w, t0)
	assert.Zero(t, b.VX)
	assert.Zero(t, b.VY)
	assert.Empty(t, w.Store().Projectiles())
}

func TestPolicyOutOfRangeHoldsFire(t *testing.T) {
	w := newWorld()
	b := addBot(w, "bot-0", 100, 450)
	addHuman(w, "h", 1500, 450)

	NewPolicy(Hard).Feed(w, t0)
	assert.True(t, b.LastShot.IsZero())
	assert.Greater(t, b.VX, 0.0)
}

func TestDifficultyParsing(t *testing.T) {
	assert.Equal(t, Easy, ParseDifficulty(" EASY "))
	assert.Equal(t, Hard, ParseDifficulty("hard"))
	assert.Equal(t, Medium, ParseDifficulty(""))
	assert.Equal(t, 0.32, Easy.AimJitter())
	assert.Equal(t, 0.65, Hard.AbilityChance())
}

func TestCountByModeAndDifficulty(t *testing.T) {
	cases := []struct {
		mode Mode
		diff Difficulty
		want int
	}{
		{FFA, Medium, 7},
		{FFA, Easy, 4},
		{FFA, Hard, 11},
		{OneVsFifty, Medium, 50},
		{OneVsFifty, Easy, 30},
		{OneVsFifty, Hard, 80},
		{TwentyVs20, Hard, 64},
		{Mode("tiny"), Easy, 3},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Count(c.mode, c.diff), "%s/%s", c.mode, c.diff)
	}
}

func TestRosterTeams(t *testing.T) {
	ffa := Roster(FFA, 3)
	require.Len(t, ffa, 3)
	assert.Equal(t, "bot-0", ffa[0].ID)
	assert.Equal(t, "Bot1", ffa[0].Name)
	assert.True(t, ffa[2].Bot)
	assert.Equal(t, sim.TeamNone, ffa[1].Team)

	for _, s := range Roster(OneVsFifty, 5) {
		assert.Equal(t, sim.TeamBlue, s.Team)
	}
	tv := Roster(TwentyVs20, 4)
	assert.Equal(t, []sim.Team{sim.TeamRed, sim.TeamBlue, sim.TeamRed, sim.TeamBlue},
		[]sim.Team{tv[0].Team, tv[1].Team, tv[2].Team, tv[3].Team})

	assert.Equal(t, sim.TeamRed, TwentyVs20.LocalTeam())
	assert.Equal(t, sim.TeamNone, FFA.LocalTeam())
	assert.Equal(t, OneVsFifty, ParseMode("1V50"))
}
