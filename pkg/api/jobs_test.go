package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ballast-sched/ballast/pkg/schederr"
	"github.com/ballast-sched/ballast/pkg/types"
)

func TestCreateJobInstanceJobTracksEveryTask(t *testing.T) {
	env := newTestEnv(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "web"}

	resp, err := env.server.CreateJob(context.Background(), CreateJobRequest{
		Job:        types.JobConfiguration{Key: key, Owner: "r", InstanceCount: 2},
		TaskConfig: types.TaskConfig{Role: key.Role, Environment: key.Environment, JobName: key.JobName, Tier: types.TierPreemptible},
	})
	require.NoError(t, err)
	ids := resp.Data.([]string)
	require.Len(t, ids, 2)

	for _, id := range ids {
		require.NoError(t, env.host.UpdateState(id, types.StatusAssigned, "placed", "scheduler-1"),
			"createJob must track every new task before returning")
	}
}

func TestCreateJobRejectsZeroInstances(t *testing.T) {
	env := newTestEnv(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "web"}

	_, err := env.server.CreateJob(context.Background(), CreateJobRequest{
		Job:        types.JobConfiguration{Key: key, Owner: "r", InstanceCount: 0},
		TaskConfig: types.TaskConfig{Role: key.Role, Environment: key.Environment, JobName: key.JobName},
	})
	require.Error(t, err)
}

func TestCreateJobHonorsExistingLock(t *testing.T) {
	env := newTestEnv(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "web"}

	_, err := env.server.locks.Acquire(types.LockKey{Job: key}, "owner")
	require.NoError(t, err)

	_, err = env.server.CreateJob(context.Background(), CreateJobRequest{
		Job:        types.JobConfiguration{Key: key, Owner: "r", InstanceCount: 1},
		TaskConfig: types.TaskConfig{Role: key.Role, Environment: key.Environment, JobName: key.JobName},
		LockToken:  "wrong-token",
	})
	require.Error(t, err, "a createJob against a locked job without the matching token must fail")
}

func TestCreateJobEnforcesQuotaForProductionTier(t *testing.T) {
	env := newTestEnv(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "web"}

	_, err := env.server.CreateJob(context.Background(), CreateJobRequest{
		Job: types.JobConfiguration{Key: key, Owner: "r", InstanceCount: 1},
		TaskConfig: types.TaskConfig{
			Role: key.Role, Environment: key.Environment, JobName: key.JobName,
			Tier: types.TierProduction, CPU: 1,
		},
	})
	require.Error(t, err, "production tier with no configured quota must be denied")
}

func TestAddInstancesTracksNewTasks(t *testing.T) {
	env := newTestEnv(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "web"}

	resp, err := env.server.AddInstances(context.Background(), AddInstancesRequest{
		Job:         key,
		InstanceIDs: []int{5, 6},
		TaskConfig:  types.TaskConfig{Role: key.Role, Environment: key.Environment, JobName: key.JobName},
	})
	require.NoError(t, err)
	ids := resp.Data.([]string)
	require.Len(t, ids, 2)
	for _, id := range ids {
		require.NoError(t, env.host.UpdateState(id, types.StatusAssigned, "placed", "scheduler-1"))
	}
}

func TestAddInstancesReportsWarningOnPartialConflict(t *testing.T) {
	env := newTestEnv(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "web"}
	cfg := types.TaskConfig{Role: key.Role, Environment: key.Environment, JobName: key.JobName}

	first, err := env.server.AddInstances(context.Background(), AddInstancesRequest{
		Job: key, InstanceIDs: []int{0}, TaskConfig: cfg,
	})
	require.NoError(t, err)
	require.Equal(t, schederr.ResponseOK, first.Code)

	resp, err := env.server.AddInstances(context.Background(), AddInstancesRequest{
		Job: key, InstanceIDs: []int{0, 1}, TaskConfig: cfg,
	})
	require.NoError(t, err, "a partial conflict must not fail the whole rewrite")
	require.Equal(t, schederr.ResponseWarning, resp.Code)
	ids := resp.Data.([]string)
	require.Len(t, ids, 1, "only the free instance id should have produced a new task")
}

func TestAddInstancesFailsWhenEveryInstanceConflicts(t *testing.T) {
	env := newTestEnv(t)
	key := types.JobKey{Role: "r", Environment: "prod", JobName: "web"}
	cfg := types.TaskConfig{Role: key.Role, Environment: key.Environment, JobName: key.JobName}

	_, err := env.server.AddInstances(context.Background(), AddInstancesRequest{
		Job: key, InstanceIDs: []int{0}, TaskConfig: cfg,
	})
	require.NoError(t, err)

	_, err = env.server.AddInstances(context.Background(), AddInstancesRequest{
		Job: key, InstanceIDs: []int{0}, TaskConfig: cfg,
	})
	require.Error(t, err, "every requested instance id conflicting leaves nothing to warn about")
}

func TestPopulateJobConfigFillsDefaults(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.server.PopulateJobConfig(context.Background(), PopulateJobConfigRequest{
		TaskConfig: types.TaskConfig{Role: "r", Environment: "prod", JobName: "web"},
	})
	require.NoError(t, err)
	cfg := resp.Data.(types.TaskConfig)
	require.Equal(t, types.TierPreemptible, cfg.Tier)
	require.Equal(t, -1, cfg.MaxTaskFailures)
}
