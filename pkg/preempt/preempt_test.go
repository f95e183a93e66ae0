package preempt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ballast-sched/ballast/pkg/clock"
	"github.com/ballast-sched/ballast/pkg/scheduler"
	"github.com/ballast-sched/ballast/pkg/statemachine"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

type fakeKillNotifier struct{ killed []string }

func (f *fakeKillNotifier) NotifyKill(taskID string) { f.killed = append(f.killed, taskID) }

func newTestPreemptor(t *testing.T) (*Preemptor, *storage.Facade, *statemachine.Host, *fakeKillNotifier) {
	t.Helper()
	facade, err := storage.Open(t.TempDir())
	require.NoError(t, err)

	kill := &fakeKillNotifier{}
	sink := scheduler.NewTaskSink(facade, clock.New(), kill)
	host := statemachine.NewHost(sink)
	sink.BindHost(host)

	return New(Config{Facade: facade, Host: host, SchedulerHost: "scheduler-1"}), facade, host, kill
}

// putTask persists taskID with status and cfg. Only RUNNING tasks are
// tracked with the state machine host: FindVictim only ever drives a
// victim's RUNNING->PREEMPTING transition, never the candidate's.
func putTask(t *testing.T, facade *storage.Facade, host *statemachine.Host, taskID string, status types.TaskStatus, cfg types.TaskConfig) {
	t.Helper()
	task := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{TaskConfig: cfg, TaskID: taskID},
		Status:       status,
	}
	_, err := storage.Write(facade, storage.NewPutTaskCommand(task), func(s storage.MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Tasks().PutTask(task)
	})
	require.NoError(t, err)
	if status == types.StatusRunning {
		host.Track(taskID, status, cfg.IsService, cfg.MaxTaskFailures, 0)
	}
}

func TestFindVictimPreemptsLowerTier(t *testing.T) {
	p, facade, host, kill := newTestPreemptor(t)

	putTask(t, facade, host, "victim", types.StatusRunning, types.TaskConfig{
		CPU: 4, RAMMB: 4096, Tier: types.TierPreemptible,
	})
	putTask(t, facade, host, "candidate", types.StatusPending, types.TaskConfig{
		CPU: 2, RAMMB: 2048, Tier: types.TierProduction,
	})

	found, err := p.FindVictim(context.Background(), "candidate")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []string{"victim"}, kill.killed)

	victim, err := storage.Read(facade, func(s storage.StoreProvider) (*types.ScheduledTask, error) {
		tk, found, err := s.Tasks().GetTask("victim")
		if err != nil || !found {
			return nil, err
		}
		return tk, nil
	})
	require.NoError(t, err)
	require.NotNil(t, victim)
	require.Equal(t, types.StatusPreempting, victim.Status)
}

func TestFindVictimRefusesEqualOrHigherTier(t *testing.T) {
	p, facade, host, _ := newTestPreemptor(t)

	putTask(t, facade, host, "victim", types.StatusRunning, types.TaskConfig{
		CPU: 4, RAMMB: 4096, Tier: types.TierProduction,
	})
	putTask(t, facade, host, "candidate", types.StatusPending, types.TaskConfig{
		CPU: 2, RAMMB: 2048, Tier: types.TierProduction, Priority: 0,
	})

	found, err := p.FindVictim(context.Background(), "candidate")
	require.NoError(t, err)
	require.False(t, found, "equal priority must not preempt")
}

func TestFindVictimRevocableCandidateNeverPreempts(t *testing.T) {
	p, facade, host, _ := newTestPreemptor(t)

	putTask(t, facade, host, "victim", types.StatusRunning, types.TaskConfig{
		CPU: 4, RAMMB: 4096, Tier: types.TierPreemptible,
	})
	putTask(t, facade, host, "candidate", types.StatusPending, types.TaskConfig{
		CPU: 2, RAMMB: 2048, Tier: types.TierRevocable,
	})

	found, err := p.FindVictim(context.Background(), "candidate")
	require.NoError(t, err)
	require.False(t, found)
}

func TestFindVictimNoSufficientResources(t *testing.T) {
	p, facade, host, _ := newTestPreemptor(t)

	putTask(t, facade, host, "victim", types.StatusRunning, types.TaskConfig{
		CPU: 1, RAMMB: 512, Tier: types.TierPreemptible,
	})
	putTask(t, facade, host, "candidate", types.StatusPending, types.TaskConfig{
		CPU: 4, RAMMB: 4096, Tier: types.TierProduction,
	})

	found, err := p.FindVictim(context.Background(), "candidate")
	require.NoError(t, err)
	require.False(t, found)
}

func TestFindVictimPicksCheapestSufficientVictim(t *testing.T) {
	p, facade, host, kill := newTestPreemptor(t)

	putTask(t, facade, host, "expensive", types.StatusRunning, types.TaskConfig{
		CPU: 8, RAMMB: 8192, Tier: types.TierPreemptible,
	})
	putTask(t, facade, host, "cheap", types.StatusRunning, types.TaskConfig{
		CPU: 2, RAMMB: 2048, Tier: types.TierPreemptible,
	})
	putTask(t, facade, host, "candidate", types.StatusPending, types.TaskConfig{
		CPU: 1, RAMMB: 1024, Tier: types.TierProduction,
	})

	found, err := p.FindVictim(context.Background(), "candidate")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []string{"cheap"}, kill.killed)
}
