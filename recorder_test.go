package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotateio-server/internal/protocol"
	"rotateio-server/internal/sim"
)

func countKills(t *testing.T, db *DB, matchID string) int {
	t.Helper()
	var n int
	require.NoError(t, db.conn.QueryRow("SELECT COUNT(*) FROM kill_events WHERE match_key = ?", matchID).Scan(&n))
	return n
}

func TestRecorderFlushesOnStop(t *testing.T) {
	db := openTestDB(t)
	rec := NewRecorder(db, zerolog.Nop())

	for i := 0; i < recorderBatchSize+3; i++ {
		rec.RecordKill("m1", sim.KillEvent{Killer: "a", Victim: "b", At: t0})
	}
	rec.RecordMatch(MatchResult{
		MatchID: "m1",
		EndedAt: t0,
		Players: []ScoreRow{{ScoreEntry: protocol.ScoreEntry{ID: "a", Score: 100}, AccountID: "9"}},
	})
	rec.Stop()
	rec.Stop()

	assert.Equal(t, recorderBatchSize+3, countKills(t, db, "m1"))
	stats, err := db.GetStats("9")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Matches)
}

func TestRecorderFlushesPeriodically(t *testing.T) {
	old := recorderFlushEvery
	recorderFlushEvery = 10 * time.Millisecond
	t.Cleanup(func() { recorderFlushEvery = old })

	db := openTestDB(t)
	rec := NewRecorder(db, zerolog.Nop())
	t.Cleanup(rec.Stop)

	rec.RecordKill("m2", sim.KillEvent{Killer: "", Victim: "b", At: t0})
	assert.Eventually(t, func() bool {
		var n int
		db.conn.QueryRow("SELECT COUNT(*) FROM kill_events WHERE match_key = ?", "m2").Scan(&n)
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecorderWithoutDB(t *testing.T) {
	rec := NewRecorder(nil, zerolog.Nop())
	rec.RecordKill("m", sim.KillEvent{Victim: "b"})
	assert.NotPanics(t, rec.Stop)
}
