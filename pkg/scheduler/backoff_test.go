package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffGrowsAndCapsAtMax(t *testing.T) {
	b := NewExponentialBackoff(time.Second, 8*time.Second)

	p1 := b.NextPenalty()
	assert.LessOrEqual(t, p1, time.Second)

	for i := 0; i < 10; i++ {
		p := b.NextPenalty()
		assert.LessOrEqual(t, p, 8*time.Second, "penalty must never exceed the configured ceiling")
	}
}

func TestExponentialBackoffResetReturnsToFloor(t *testing.T) {
	b := NewExponentialBackoff(time.Second, 30*time.Second)
	for i := 0; i < 5; i++ {
		b.NextPenalty()
	}
	b.Reset()

	p := b.NextPenalty()
	assert.LessOrEqual(t, p, time.Second, "penalty must return to the initial floor after Reset")
}
