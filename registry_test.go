package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotateio-server/internal/bot"
	"rotateio-server/internal/protocol"
	"rotateio-server/internal/sim"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	metrics := newNopMetrics(t)
	r := NewRegistry(context.Background(), MatchConfig{Mode: bot.FFA, Tick: 5 * time.Millisecond}, zerolog.Nop(), metrics, nil)
	t.Cleanup(r.StopAll)
	return r
}

func TestRegistryAlwaysHasMain(t *testing.T) {
	r := newTestRegistry(t)

	m, ok := r.Get("")
	require.True(t, ok)
	assert.Equal(t, MainMatchID, m.ID())

	require.NoError(t, m.Join(sim.JoinSpec{ID: "p1"}, &mockBroadcaster{}))
	r.RemovePlayer(MainMatchID, "p1")
	_, ok = r.Get(MainMatchID)
	assert.True(t, ok, "main survives its last player")
}

func TestRegistryStartAppliesRequest(t *testing.T) {
	r := newTestRegistry(t)

	m, err := r.Start(protocol.StartMatchRequest{
		MatchID: "cup",
		Mode:    "20V20",
		Players: []protocol.RosterEntry{{AccountID: "7", Team: sim.TeamBlue}},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.MatchInfo{ID: "cup", Mode: "20v20"}, m.Info())
	assert.Equal(t, sim.TeamBlue, m.roster["7"])

	_, err = r.Start(protocol.StartMatchRequest{MatchID: "cup"})
	assert.ErrorIs(t, err, ErrMatchExists)

	anon, err := r.Start(protocol.StartMatchRequest{})
	require.NoError(t, err)
	_, err = uuid.Parse(anon.ID())
	assert.NoError(t, err)
	assert.Equal(t, string(bot.FFA), anon.Info().Mode)

	ids := []string{}
	for _, info := range r.List() {
		ids = append(ids, info.ID)
	}
	assert.Len(t, ids, 3)
	assert.IsIncreasing(t, ids)
}

func TestRegistryClosesEmptiedMatch(t *testing.T) {
	r := newTestRegistry(t)
	m, err := r.Start(protocol.StartMatchRequest{MatchID: "short"})
	require.NoError(t, err)

	require.NoError(t, m.Join(sim.JoinSpec{ID: "a"}, &mockBroadcaster{}))
	require.NoError(t, m.Join(sim.JoinSpec{ID: "b"}, &mockBroadcaster{}))

	r.RemovePlayer("short", "a")
	_, ok := r.Get("short")
	assert.True(t, ok)

	r.RemovePlayer("short", "b")
	_, ok = r.Get("short")
	assert.False(t, ok)
	assert.ErrorIs(t, m.Join(sim.JoinSpec{ID: "c"}, &mockBroadcaster{}), ErrMatchStopped)

	// unknown ids are ignored
	r.RemovePlayer("nope", "a")
}

func TestRegistryLimit(t *testing.T) {
	r := newTestRegistry(t)
	for i := 1; i < maxMatches; i++ {
		_, err := r.Start(protocol.StartMatchRequest{})
		require.NoError(t, err)
	}
	_, err := r.Start(protocol.StartMatchRequest{})
	assert.ErrorIs(t, err, ErrTooManyMatches)

	r.StopAll()
	assert.Empty(t, r.List())
}
