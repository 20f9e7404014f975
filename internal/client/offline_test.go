package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotateio-server/internal/bot"
	"rotateio-server/internal/sim"
)

func TestOfflineRosterByMode(t *testing.T) {
	cases := []struct {
		mode bot.Mode
		diff bot.Difficulty
		bots int
	}{
		{bot.FFA, bot.Medium, 7},
		{bot.OneVsFifty, bot.Medium, 50},
		{bot.TwentyVs20, bot.Easy, 24},
	}
	for _, c := range cases {
		v := NewView()
		o := NewOffline(OfflineConfig{Mode: c.mode, Difficulty: c.diff, Seed: 1}, v, t0)
		assert.Equal(t, c.bots+1, o.World().Store().PlayerCount(), "%s", c.mode)

		me, ok := v.Local()
		require.True(t, ok)
		assert.Equal(t, c.mode.LocalTeam(), me.Team)
		assert.Len(t, v.Players(), c.bots+1)
	}
}

func TestOfflineStepDrivesLocalAndBots(t *testing.T) {
	v := NewView()
	o := NewOffline(OfflineConfig{Mode: bot.FFA, Difficulty: bot.Hard, Seed: 3}, v, t0)

	me, _ := o.World().Store().Player(LocalID)
	startX := me.X
	o.Move(3, 0, 0)
	o.Shoot()
	res := o.Step(t0.Add(60 * time.Millisecond))

	assert.NotEqual(t, startX, me.X)
	assert.Equal(t, t0.Add(60*time.Millisecond), me.LastShot)
	assert.NotEmpty(t, res.Projectiles)

	moving := 0
	for _, p := range o.World().Store().Players() {
		if p.Bot && (p.VX != 0 || p.VY != 0) {
			moving++
		}
	}
	assert.Positive(t, moving, "bot policy should have staged intent")

	local, _ := v.Local()
	assert.Equal(t, me.X, local.X, "view rebuilt from the step")
}

func TestOfflineShopUsesCoins(t *testing.T) {
	o := NewOffline(OfflineConfig{Mode: bot.FFA, Seed: 5}, NewView(), t0)
	me, _ := o.World().Store().Player(LocalID)
	me.Coins = 8

	o.BuyWeapon(sim.WeaponRifle)
	o.Step(t0.Add(60 * time.Millisecond))
	assert.Equal(t, sim.WeaponRifle, me.Weapon)
	assert.Zero(t, me.Coins)
}
