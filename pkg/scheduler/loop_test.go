package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ballast-sched/ballast/pkg/events"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

type fakePlacer struct {
	mu       sync.Mutex
	attempts []string
	result   bool
	err      error
}

func (p *fakePlacer) Place(ctx context.Context, taskID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = append(p.attempts, taskID)
	return p.result, p.err
}

func (p *fakePlacer) attemptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.attempts)
}

type fakePreemptor struct{ calls int }

func (p *fakePreemptor) FindVictim(ctx context.Context, taskID string) (bool, error) {
	p.calls++
	return false, nil
}

func newTestLoop(t *testing.T, placer Placer, preemptor Preemptor) (*Loop, *storage.Facade, *events.Broker) {
	t.Helper()
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	facade, err := storage.Open(t.TempDir(), storage.WithNotifier(broker))
	require.NoError(t, err)

	loop := NewLoop(Config{
		Facade:    facade,
		Placer:    placer,
		Preemptor: preemptor,
		Broker:    broker,
		RateLimit: rate.Limit(1000),
		RateBurst: 1000,
	})
	return loop, facade, broker
}

func putPendingTask(t *testing.T, facade *storage.Facade, taskID string) {
	t.Helper()
	task := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{
			TaskConfig: types.TaskConfig{Role: "r", Environment: "prod", JobName: "j", CPU: 1, RAMMB: 100},
			TaskID:     taskID,
		},
		Status: types.StatusPending,
	}
	_, err := storage.Write(facade, storage.NewPutTaskCommand(task), func(s storage.MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Tasks().PutTask(task)
	})
	require.NoError(t, err)
}

func TestLoopPlacesTaskOnPendingEvent(t *testing.T) {
	placer := &fakePlacer{result: true}
	loop, facade, _ := newTestLoop(t, placer, &fakePreemptor{})
	loop.Start()
	defer loop.Stop()

	putPendingTask(t, facade, "task-1")

	require.Eventually(t, func() bool {
		return placer.attemptCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoopRetriesOnPlacementFailureAndConsultsPreemptor(t *testing.T) {
	placer := &fakePlacer{result: false}
	preemptor := &fakePreemptor{}
	loop, facade, _ := newTestLoop(t, placer, preemptor)
	loop.backoffFn = func() Backoff { return NewExponentialBackoff(5*time.Millisecond, 20*time.Millisecond) }
	loop.Start()
	defer loop.Stop()

	putPendingTask(t, facade, "task-1")

	require.Eventually(t, func() bool {
		return placer.attemptCount() >= 2
	}, 2*time.Second, 10*time.Millisecond, "a failed placement must be retried")

	require.Greater(t, preemptor.calls, 0, "a failed placement must consult the preemptor")
}
