package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for deterministic tests. Advance(d) fires
// every pending timer/ticker whose deadline falls within the new instant, in
// deadline order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

// NewFake returns a Fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d, firing any timers/tickers whose
// deadline is now due. Tickers are rearmed for their next period.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	due := f.waiters[:0]
	var remaining []*fakeWaiter
	for _, w := range f.waiters {
		if !w.deadline.After(now) {
			due = append(due, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	f.waiters = remaining
	f.mu.Unlock()

	for _, w := range due {
		select {
		case w.ch <- now:
		default:
		}
		if w.period > 0 {
			f.mu.Lock()
			w.deadline = now.Add(w.period)
			f.waiters = append(f.waiters, w)
			f.mu.Unlock()
		}
	}
}

type fakeWaiter struct {
	ch       chan time.Time
	deadline time.Time
	period   time.Duration // 0 for one-shot timers/After
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{ch: make(chan time.Time, 1), deadline: f.now.Add(d)}
	f.waiters = append(f.waiters, w)
	return w.ch
}

func (f *Fake) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{ch: make(chan time.Time, 1), deadline: f.now.Add(d)}
	f.waiters = append(f.waiters, w)
	return &fakeTimer{f: f, w: w}
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{ch: make(chan time.Time, 1), deadline: f.now.Add(d), period: d}
	f.waiters = append(f.waiters, w)
	return &fakeTicker{f: f, w: w}
}

func (f *Fake) remove(w *fakeWaiter) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.waiters {
		if cur == w {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTimer struct {
	f *Fake
	w *fakeWaiter
}

func (t *fakeTimer) C() <-chan time.Time { return t.w.ch }
func (t *fakeTimer) Stop() bool          { return t.f.remove(t.w) }

func (t *fakeTimer) Reset(d time.Duration) bool {
	active := t.f.remove(t.w)
	t.f.mu.Lock()
	t.w.deadline = t.f.now.Add(d)
	t.f.waiters = append(t.f.waiters, t.w)
	t.f.mu.Unlock()
	return active
}

type fakeTicker struct {
	f *Fake
	w *fakeWaiter
}

func (t *fakeTicker) C() <-chan time.Time { return t.w.ch }
func (t *fakeTicker) Stop()               { t.f.remove(t.w) }
