package scheduler

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff tracks one TaskGroup's retry penalty across successive placement
// failures. NextPenalty advances the penalty and must be called exactly
// once per failed attempt; Reset clears it back to the floor on the first
// subsequent success.
type Backoff interface {
	NextPenalty() time.Duration
	Reset()
}

// ExponentialBackoff doubles the penalty on every failure up to max,
// applying full jitter in [current/2, current) so that many groups backing
// off in lockstep don't all retry on the same tick. Bounds default to the
// same 1s floor / 30s ceiling used for kill-confirmation backoff.
type ExponentialBackoff struct {
	mu      sync.Mutex
	initial time.Duration
	max     time.Duration
	current time.Duration
	rnd     *rand.Rand
}

// NewExponentialBackoff builds a Backoff bounded to [initial, max].
func NewExponentialBackoff(initial, max time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{
		initial: initial,
		max:     max,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// DefaultGroupBackoff returns the 1s-30s bounded backoff used by group
// workers unless overridden.
func DefaultGroupBackoff() *ExponentialBackoff {
	return NewExponentialBackoff(time.Second, 30*time.Second)
}

func (b *ExponentialBackoff) NextPenalty() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == 0 {
		b.current = b.initial
	} else {
		b.current *= 2
		if b.current > b.max {
			b.current = b.max
		}
	}

	half := b.current / 2
	jitter := time.Duration(0)
	if half > 0 {
		jitter = time.Duration(b.rnd.Int63n(int64(half)))
	}
	return half + jitter
}

func (b *ExponentialBackoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = 0
}
