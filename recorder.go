package main

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rotateio-server/internal/protocol"
	"rotateio-server/internal/sim"
)

const (
	recorderQueueSize = 1024
	recorderBatchSize = 50
)

// recorderFlushEvery is a var so tests can shorten it
var recorderFlushEvery = 5 * time.Second

// KillRecord is a kill-feed entry tagged with its match
type KillRecord struct {
	MatchID string
	sim.KillEvent
}

// ScoreRow is a scoreboard entry plus the owning account
type ScoreRow struct {
	protocol.ScoreEntry
	AccountID string
}

// MatchResult is one finished round
type MatchResult struct {
	MatchID  string
	Mode     string
	Duration time.Duration
	EndedAt  time.Time
	Players  []ScoreRow
}

// record is one queued write; exactly one field is set
type record struct {
	kill  *KillRecord
	match *MatchResult
}

// Recorder persists kills and round results with batched background writes,
// off the tick goroutine
type Recorder struct {
	db      *DB
	log     zerolog.Logger
	records chan record
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewRecorder creates and starts the background writer
func NewRecorder(db *DB, log zerolog.Logger) *Recorder {
	r := &Recorder{
		db:      db,
		log:     log.With().Str("component", "recorder").Logger(),
		records: make(chan record, recorderQueueSize),
		stop:    make(chan struct{}),
	}
	r.wg.Add(1)
	go r.writer()
	return r
}

// RecordKill enqueues a kill (non-blocking)
func (r *Recorder) RecordKill(matchID string, ev sim.KillEvent) {
	r.enqueue(record{kill: &KillRecord{MatchID: matchID, KillEvent: ev}})
}

// RecordMatch enqueues a finished round (non-blocking)
func (r *Recorder) RecordMatch(res MatchResult) {
	r.enqueue(record{match: &res})
}

func (r *Recorder) enqueue(rec record) {
	select {
	case r.records <- rec:
	default:
		r.log.Warn().Msg("queue full, dropping record")
	}
}

// Stop flushes what is queued and shuts down the writer
func (r *Recorder) Stop() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Recorder) writer() {
	defer r.wg.Done()

	batch := make([]record, 0, recorderBatchSize)
	ticker := time.NewTicker(recorderFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case rec := <-r.records:
			batch = append(batch, rec)
			if len(batch) >= recorderBatchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-r.stop:
			for {
				select {
				case rec := <-r.records:
					batch = append(batch, rec)
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch in one transaction
func (r *Recorder) flush(batch []record) {
	if r.db == nil || len(batch) == 0 {
		return
	}
	tx, err := r.db.conn.Begin()
	if err != nil {
		r.log.Error().Err(err).Msg("begin tx")
		return
	}
	defer tx.Rollback()

	for _, rec := range batch {
		switch {
		case rec.kill != nil:
			err = insertKill(tx, *rec.kill)
		case rec.match != nil:
			err = insertMatch(tx, *rec.match)
		}
		if err != nil {
			r.log.Error().Err(err).Msg("insert")
		}
	}
	if err := tx.Commit(); err != nil {
		r.log.Error().Err(err).Int("records", len(batch)).Msg("commit")
	}
}
