package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ballast-sched/ballast/pkg/clock"
	"github.com/ballast-sched/ballast/pkg/scheduler"
	"github.com/ballast-sched/ballast/pkg/statemachine"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

func newTestScheduler(t *testing.T) (*Scheduler, *storage.Facade, *statemachine.Host, *clock.Fake) {
	t.Helper()
	facade, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	sink := scheduler.NewTaskSink(facade, clock.New(), nil)
	host := statemachine.NewHost(sink)
	sink.BindHost(host)

	return New(facade, host, fake), facade, host, fake
}

func putCronJob(t *testing.T, facade *storage.Facade, key types.JobKey, schedule string, instances int) {
	t.Helper()
	job := &types.JobConfiguration{
		Key:           key,
		Owner:         "owner",
		Template:      types.TaskConfig{Role: key.Role, Environment: key.Environment, JobName: key.JobName},
		InstanceCount: instances,
		CronSchedule:  schedule,
	}
	_, err := storage.Write(facade, storage.NewPutJobCommand(job), func(s storage.MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Jobs().PutJob(job)
	})
	require.NoError(t, err)
}

func TestStartCronJobLaunchesConfiguredInstanceCount(t *testing.T) {
	s, facade, _, _ := newTestScheduler(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "batch"}
	putCronJob(t, facade, key, "* * * * *", 3)

	ids, err := s.StartCronJob(key)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	tasks, err := storage.Read(facade, func(st storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return st.Tasks().ListTasksByJob(key)
	})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		require.Equal(t, types.StatusPending, task.Status)
	}
}

func TestStartCronJobTracksLaunchedTasksWithHost(t *testing.T) {
	s, facade, host, _ := newTestScheduler(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "batch"}
	putCronJob(t, facade, key, "* * * * *", 1)

	ids, err := s.StartCronJob(key)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	require.NoError(t, host.UpdateState(ids[0], types.StatusAssigned, "placed", "scheduler-1"),
		"a task launched by cron must already be tracked so its first transition succeeds")
}

func TestStartCronJobUnknownJobFails(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	_, err := s.StartCronJob(types.JobKey{Role: "r", Environment: "prod", JobName: "missing"})
	require.Error(t, err)
}

func TestTickDoesNotFireOnFirstObservation(t *testing.T) {
	s, facade, _, fake := newTestScheduler(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "every-minute"}
	putCronJob(t, facade, key, "* * * * *", 1)

	require.NoError(t, s.Tick(fake.Now()))

	tasks, err := storage.Read(facade, func(st storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return st.Tasks().ListTasksByJob(key)
	})
	require.NoError(t, err)
	require.Empty(t, tasks, "first tick only establishes a baseline, it must not fire immediately")
}

func TestTickFiresOncePastSchedule(t *testing.T) {
	s, facade, _, fake := newTestScheduler(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "every-minute"}
	putCronJob(t, facade, key, "* * * * *", 1)

	require.NoError(t, s.Tick(fake.Now()))
	fake.Advance(90 * time.Second)
	require.NoError(t, s.Tick(fake.Now()))

	tasks, err := storage.Read(facade, func(st storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return st.Tasks().ListTasksByJob(key)
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestTickIgnoresNonCronJobs(t *testing.T) {
	s, facade, _, fake := newTestScheduler(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "templated"}
	putCronJob(t, facade, key, "", 2)

	require.NoError(t, s.Tick(fake.Now()))
	fake.Advance(time.Hour)
	require.NoError(t, s.Tick(fake.Now()))

	tasks, err := storage.Read(facade, func(st storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return st.Tasks().ListTasksByJob(key)
	})
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestReplaceCronTemplateResetsSchedule(t *testing.T) {
	s, facade, _, fake := newTestScheduler(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "every-minute"}
	putCronJob(t, facade, key, "* * * * *", 1)

	require.NoError(t, s.Tick(fake.Now()))
	fake.Advance(90 * time.Second)
	require.NoError(t, s.Tick(fake.Now()))

	job := &types.JobConfiguration{
		Key:           key,
		Owner:         "owner",
		Template:      types.TaskConfig{Role: key.Role, Environment: key.Environment, JobName: key.JobName},
		InstanceCount: 1,
		CronSchedule:  "0 0 * * *",
	}
	require.NoError(t, s.ReplaceCronTemplate(job))

	fake.Advance(time.Minute)
	require.NoError(t, s.Tick(fake.Now()), "tick right after replacing must re-parse the new schedule without firing early")

	tasks, err := storage.Read(facade, func(st storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return st.Tasks().ListTasksByJob(key)
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1, "only the one fire from before the replace should exist")
}
