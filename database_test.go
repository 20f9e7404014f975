package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotateio-server/internal/protocol"
	"rotateio-server/internal/sim"
)

func TestAccounts(t *testing.T) {
	db := openTestDB(t)

	id, err := db.CreateAccount("alice", "hash")
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = db.CreateAccount("alice", "other")
	assert.Error(t, err, "usernames are unique")

	exists, err := db.UsernameExists("alice")
	require.NoError(t, err)
	assert.True(t, exists)

	acct, err := db.GetAccountByUsername("alice")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, id, acct.ID)
	assert.Equal(t, "hash", acct.PassHash)

	acct, err = db.GetAccountByUsername("bob")
	require.NoError(t, err)
	assert.Nil(t, acct)
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)
	assert.Empty(t, db.GetSetting("k"))
	require.NoError(t, db.SetSetting("k", "v1"))
	require.NoError(t, db.SetSetting("k", "v2"))
	assert.Equal(t, "v2", db.GetSetting("k"))
}

func TestStatsAndHistory(t *testing.T) {
	db := openTestDB(t)
	end := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, score := range []int{100, 300} {
		require.NoError(t, insertMatch(db.conn, MatchResult{
			MatchID:  "main",
			Mode:     "FFA",
			Duration: 5 * time.Minute,
			EndedAt:  end.Add(time.Duration(i) * time.Hour),
			Players: []ScoreRow{
				{ScoreEntry: protocol.ScoreEntry{ID: "p1", Name: "alice", Team: sim.TeamRed, Score: score, Kills: score / 100, Deaths: 1}, AccountID: "1"},
				{ScoreEntry: protocol.ScoreEntry{ID: "bot-0", Name: "Bot1"}},
			},
		}))
	}

	stats, err := db.GetStats("1")
	require.NoError(t, err)
	assert.Equal(t, StatsRow{AccountID: "1", Matches: 2, Score: 400, Kills: 4, Deaths: 2, XP: 400, Level: 3}, stats)

	history, err := db.GetMatchHistory("1", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 300, history[0].Score)
	assert.Equal(t, int(sim.TeamRed), history[0].Team)
	assert.True(t, history[0].EndedAt.Equal(end.Add(time.Hour)))

	empty, err := db.GetStats("nobody")
	require.NoError(t, err)
	assert.Equal(t, 1, empty.Level)
}

func TestLevels(t *testing.T) {
	assert.Equal(t, 0, XPForLevel(1))
	assert.Equal(t, 100, XPForLevel(2))
	assert.Equal(t, 1, CalculateLevel(99))
	assert.Equal(t, 2, CalculateLevel(100))
	assert.Equal(t, 100, CalculateLevel(1<<40))
}
