package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	ch := f.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	f.Advance(5 * time.Second)

	select {
	case got := <-ch:
		require.Equal(t, start.Add(5*time.Second), got)
	default:
		t.Fatal("After did not fire after Advance")
	}
}

func TestFakeTickerRearms(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	ticker := f.NewTicker(time.Second)
	defer ticker.Stop()

	f.Advance(3 * time.Second)

	count := 0
drain:
	for {
		select {
		case <-ticker.C():
			count++
		default:
			break drain
		}
	}
	require.GreaterOrEqual(t, count, 1)
}

func TestFakeTimerResetRearms(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	timer := f.NewTimer(10 * time.Second)
	timer.Reset(2 * time.Second)

	f.Advance(2 * time.Second)

	select {
	case <-timer.C():
	default:
		t.Fatal("timer did not fire after Reset+Advance")
	}
}
