package scheduler

import (
	"sync"
	"time"

	"github.com/ballast-sched/ballast/pkg/types"
)

// groupState is a TaskGroup's instantaneous classification, consulted once
// per worker iteration.
type groupState int

const (
	groupEmpty groupState = iota
	groupReady
	groupNotReady
)

type queueEntry struct {
	taskID  string
	readyAt time.Time
}

// TaskGroup is the FIFO queue of one scheduling-equivalence class's pending
// tasks plus that class's shared backoff state. Every queued task is
// attempted strictly in arrival order, and a group is worked by exactly one
// goroutine at a time, so placement attempts within a group are always
// serial.
type TaskGroup struct {
	mu      sync.Mutex
	key     types.GroupKey
	queue   []queueEntry
	backoff Backoff
	wake    chan struct{}
}

func newTaskGroup(key types.GroupKey, backoff Backoff) *TaskGroup {
	return &TaskGroup{
		key:     key,
		backoff: backoff,
		wake:    make(chan struct{}, 1),
	}
}

// Key returns the group's identity.
func (g *TaskGroup) Key() types.GroupKey { return g.key }

// Enqueue appends taskID to the tail of the queue, ready at readyAt.
func (g *TaskGroup) Enqueue(taskID string, readyAt time.Time) {
	g.mu.Lock()
	for _, e := range g.queue {
		if e.taskID == taskID {
			g.mu.Unlock()
			return
		}
	}
	g.queue = append(g.queue, queueEntry{taskID: taskID, readyAt: readyAt})
	g.mu.Unlock()
	g.signal()
}

// Remove drops taskID from the queue, e.g. when the task is deleted out from
// under the group before its turn arrives.
func (g *TaskGroup) Remove(taskID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, e := range g.queue {
		if e.taskID == taskID {
			g.queue = append(g.queue[:i], g.queue[i+1:]...)
			return
		}
	}
}

// state classifies the group as of now: EMPTY (nothing queued), READY (the
// head's readyAt has passed), or NOT_READY (waiting out the head's
// penalty).
func (g *TaskGroup) state(now time.Time) groupState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) == 0 {
		return groupEmpty
	}
	if now.Before(g.queue[0].readyAt) {
		return groupNotReady
	}
	return groupReady
}

// nextReadyAt returns the head entry's readyAt; callers must only call this
// when state is NOT_READY or READY (i.e. the queue is non-empty).
func (g *TaskGroup) nextReadyAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) == 0 {
		return time.Time{}
	}
	return g.queue[0].readyAt
}

// popHead removes and returns the head entry's taskID.
func (g *TaskGroup) popHead() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) == 0 {
		return "", false
	}
	e := g.queue[0]
	g.queue = g.queue[1:]
	return e.taskID, true
}

// pushBack re-enqueues taskID at the tail with a new readyAt, used after a
// failed placement attempt.
func (g *TaskGroup) pushBack(taskID string, readyAt time.Time) {
	g.mu.Lock()
	g.queue = append(g.queue, queueEntry{taskID: taskID, readyAt: readyAt})
	g.mu.Unlock()
	g.signal()
}

// Len reports the number of queued tasks.
func (g *TaskGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

func (g *TaskGroup) signal() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}
