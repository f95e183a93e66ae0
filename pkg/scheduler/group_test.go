package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopBackoff struct{}

func (noopBackoff) NextPenalty() time.Duration { return 0 }
func (noopBackoff) Reset()                     {}

func TestGroupStateTransitions(t *testing.T) {
	g := newTaskGroup("g", noopBackoff{})
	now := time.Now()

	assert.Equal(t, groupEmpty, g.state(now))

	g.Enqueue("task-1", now.Add(time.Minute))
	assert.Equal(t, groupNotReady, g.state(now))

	assert.Equal(t, groupReady, g.state(now.Add(2*time.Minute)))
}

func TestGroupFIFOOrder(t *testing.T) {
	g := newTaskGroup("g", noopBackoff{})
	now := time.Now()
	g.Enqueue("task-1", now)
	g.Enqueue("task-2", now)

	first, ok := g.popHead()
	require.True(t, ok)
	assert.Equal(t, "task-1", first)

	second, ok := g.popHead()
	require.True(t, ok)
	assert.Equal(t, "task-2", second)

	_, ok = g.popHead()
	assert.False(t, ok)
}

func TestGroupEnqueueIsIdempotent(t *testing.T) {
	g := newTaskGroup("g", noopBackoff{})
	now := time.Now()
	g.Enqueue("task-1", now)
	g.Enqueue("task-1", now)
	assert.Equal(t, 1, g.Len())
}

func TestGroupRemoveDropsQueuedTask(t *testing.T) {
	g := newTaskGroup("g", noopBackoff{})
	now := time.Now()
	g.Enqueue("task-1", now)
	g.Enqueue("task-2", now)

	g.Remove("task-1")

	remaining, ok := g.popHead()
	require.True(t, ok)
	assert.Equal(t, "task-2", remaining)
}

func TestGroupPushBackGoesToTail(t *testing.T) {
	g := newTaskGroup("g", noopBackoff{})
	now := time.Now()
	g.Enqueue("task-1", now)
	g.Enqueue("task-2", now)

	head, _ := g.popHead()
	g.pushBack(head, now)

	first, _ := g.popHead()
	assert.Equal(t, "task-2", first, "task-1 went to the tail after its failed attempt")
}
