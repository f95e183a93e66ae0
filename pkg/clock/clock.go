// Package clock injects time as a dependency so the scheduling loop,
// backoff strategies, and lock timestamps can be driven deterministically in
// tests instead of sleeping on a wall clock.
package clock

import "time"

// Clock is the seam between time-dependent code and either the real wall
// clock or a manually-driven fake used in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer mirrors the subset of time.Timer that callers need.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// Ticker mirrors the subset of time.Ticker that callers need.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System is the real-time Clock backed by the standard library.
type System struct{}

// New returns the real-time Clock.
func New() Clock { return System{} }

func (System) Now() time.Time { return time.Now() }

func (System) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (System) NewTimer(d time.Duration) Timer {
	return &systemTimer{t: time.NewTimer(d)}
}

func (System) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTimer struct{ t *time.Timer }

func (s *systemTimer) C() <-chan time.Time      { return s.t.C }
func (s *systemTimer) Stop() bool               { return s.t.Stop() }
func (s *systemTimer) Reset(d time.Duration) bool { return s.t.Reset(d) }

type systemTicker struct{ t *time.Ticker }

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }
