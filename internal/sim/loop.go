package sim

import (
	"context"
	"time"
)

// TickSource drives a Loop. The server uses a network-rate ticker; the
// offline client uses the same type as its cooperative timer.
type TickSource interface {
	Ticks() <-chan time.Time
	Stop()
}

// InputSource stages actions into the world at the start of a tick.
// Real connections and the bot policy both implement it.
type InputSource interface {
	Feed(w *World, now time.Time)
}

// InputFunc adapts a function to InputSource
type InputFunc func(w *World, now time.Time)

// Feed calls f
func (f InputFunc) Feed(w *World, now time.Time) { f(w, now) }

// Ticker is a TickSource backed by time.Ticker
type Ticker struct {
	t *time.Ticker
}

// NewTicker starts a ticker with the given period
func NewTicker(period time.Duration) *Ticker {
	return &Ticker{t: time.NewTicker(period)}
}

// Ticks returns the tick channel
func (t *Ticker) Ticks() <-chan time.Time { return t.t.C }

// Stop stops the ticker
func (t *Ticker) Stop() { t.t.Stop() }

// Loop is the fixed-rate driver: it is the only goroutine that touches its
// World, so staged input is applied without locks.
type Loop struct {
	World  *World
	Ticks  TickSource
	Inputs []InputSource
	OnStep func(StepResult)
}

// Run ticks until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	defer l.Ticks.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-l.Ticks.Ticks():
			l.Tick(now)
		}
	}
}

// Tick feeds every input source, steps the world and reports the result
func (l *Loop) Tick(now time.Time) StepResult {
	for _, src := range l.Inputs {
		src.Feed(l.World, now)
	}
	res := l.World.Step(now)
	if l.OnStep != nil {
		l.OnStep(res)
	}
	return res
}
