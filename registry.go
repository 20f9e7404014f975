package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rotateio-server/internal/bot"
	"rotateio-server/internal/protocol"
)

const maxMatches = 100

var (
	ErrMatchExists    = errors.New("match already exists")
	ErrTooManyMatches = errors.New("too many active matches")
)

// Registry owns the running matches. The main match always exists; matches
// started by the allocator are torn down when their last player leaves.
type Registry struct {
	ctx      context.Context
	defaults MatchConfig
	log      zerolog.Logger
	metrics  *Metrics
	recorder *Recorder

	mu      sync.RWMutex
	matches map[string]*Match
}

// NewRegistry creates the registry and starts the main match
func NewRegistry(ctx context.Context, defaults MatchConfig, log zerolog.Logger, metrics *Metrics, recorder *Recorder) *Registry {
	r := &Registry{
		ctx:      ctx,
		defaults: defaults,
		log:      log.With().Str("component", "registry").Logger(),
		metrics:  metrics,
		recorder: recorder,
		matches:  make(map[string]*Match),
	}
	cfg := defaults
	cfg.ID = MainMatchID
	r.matches[MainMatchID] = r.launch(cfg)
	return r
}

func (r *Registry) launch(cfg MatchConfig) *Match {
	m := NewMatch(cfg, r.log, r.metrics, r.recorder, time.Now())
	m.Start(r.ctx)
	return m
}

// Start allocates a match for the allocator's request
func (r *Registry) Start(req protocol.StartMatchRequest) (*Match, error) {
	id := req.MatchID
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[id]; ok {
		return nil, ErrMatchExists
	}
	if len(r.matches) >= maxMatches {
		return nil, ErrTooManyMatches
	}

	cfg := r.defaults
	cfg.ID = id
	cfg.Roster = req.Players
	if req.Mode != "" {
		cfg.Mode = bot.ParseMode(req.Mode)
	}
	m := r.launch(cfg)
	r.matches[id] = m
	return m, nil
}

// Get returns a match by id; the empty id is the main match
func (r *Registry) Get(id string) (*Match, bool) {
	if id == "" {
		id = MainMatchID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	return m, ok
}

// RemovePlayer stages a departure and tears down an emptied match
func (r *Registry) RemovePlayer(matchID, playerID string) {
	m, ok := r.Get(matchID)
	if !ok {
		return
	}
	m.Leave(playerID)
	if m.ID() == MainMatchID || m.PlayerCount() > 0 {
		return
	}

	r.mu.Lock()
	if cur, ok := r.matches[m.ID()]; !ok || cur != m || m.PlayerCount() > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.matches, m.ID())
	r.mu.Unlock()

	m.Stop()
	r.log.Info().Str("match", m.ID()).Msg("match closed")
}

// List returns every match ordered by id
func (r *Registry) List() []protocol.MatchInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]protocol.MatchInfo, 0, len(r.matches))
	for _, m := range r.matches {
		list = append(list, m.Info())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// StopAll stops every match
func (r *Registry) StopAll() {
	r.mu.Lock()
	matches := make([]*Match, 0, len(r.matches))
	for _, m := range r.matches {
		matches = append(matches, m)
	}
	r.matches = make(map[string]*Match)
	r.mu.Unlock()

	for _, m := range matches {
		m.Stop()
	}
}
