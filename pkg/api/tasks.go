package api

import (
	"context"
	"time"

	"github.com/ballast-sched/ballast/pkg/schederr"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// killWaitBudget bounds how long KillTasks waits for its targets to reach a
// terminal status before giving up with a TIMEOUT response.
const killWaitBudget = 30 * time.Second

const killPollInterval = 200 * time.Millisecond

func wrapKillTasks(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.KillTasks(ctx, req.Payload.(KillTasksRequest))
	}
}

// KillTasks transitions every task matching req.Query toward KILLING and
// waits up to killWaitBudget for them all to reach a terminal status. An
// empty match set is rejected rather than silently succeeding, since a
// caller whose query matched nothing almost certainly made a mistake.
func (s *Server) KillTasks(ctx context.Context, req KillTasksRequest) (*Response, error) {
	if req.Query.Role != "" {
		key := types.JobKey{Role: req.Query.Role, Environment: req.Query.Environment, JobName: req.Query.JobName}
		if err := s.locks.ValidateIfLocked(types.LockKey{Job: key}, req.LockToken); err != nil {
			return nil, err
		}
	}

	tasks, err := storage.Read(s.facade, func(st storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return st.Tasks().ListTasks()
	})
	if err != nil {
		return nil, schederr.Storage(err, "list tasks for killTasks")
	}
	var targets []string
	for _, t := range tasks {
		if req.Query.matches(t) && t.Status.IsActive() {
			targets = append(targets, t.TaskID)
		}
	}
	if len(targets) == 0 {
		return nil, schederr.InvalidRequest("no tasks found matching query")
	}

	for _, taskID := range targets {
		if err := s.host.UpdateState(taskID, types.StatusKilling, "killTasks requested", ""); err != nil {
			return nil, schederr.Internal(err, "drive task %s to KILLING", taskID)
		}
	}

	if err := s.awaitTerminal(ctx, targets); err != nil {
		return nil, err
	}
	return ok("tasks killed", targets), nil
}

// awaitTerminal polls storage until every listed task id is terminal or
// killWaitBudget elapses, whichever comes first.
func (s *Server) awaitTerminal(ctx context.Context, taskIDs []string) error {
	deadline := s.clk.NewTimer(killWaitBudget)
	defer deadline.Stop()
	ticker := s.clk.NewTicker(killPollInterval)
	defer ticker.Stop()

	for {
		allTerminal, err := storage.Read(s.facade, func(st storage.StoreProvider) (bool, error) {
			for _, id := range taskIDs {
				t, found, err := st.Tasks().GetTask(id)
				if err != nil {
					return false, err
				}
				if !found || !t.Status.IsTerminal() {
					return false, nil
				}
			}
			return true, nil
		})
		if err != nil {
			return schederr.Storage(err, "poll tasks for termination")
		}
		if allTerminal {
			return nil
		}

		select {
		case <-ctx.Done():
			return schederr.Interrupted("killTasks wait interrupted: %v", ctx.Err())
		case <-deadline.C():
			return schederr.Timeout("killTasks: tasks did not reach a terminal status within %s", killWaitBudget)
		case <-ticker.C():
		}
	}
}

func wrapRestartShards(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.RestartShards(ctx, req.Payload.(RestartShardsRequest))
	}
}

// RestartShards drives the named instances of a job toward RESTARTING,
// which the state machine resolves into a kill-and-reschedule pair.
func (s *Server) RestartShards(ctx context.Context, req RestartShardsRequest) (*Response, error) {
	if err := s.locks.ValidateIfLocked(types.LockKey{Job: req.Job}, req.LockToken); err != nil {
		return nil, err
	}
	if len(req.InstanceIDs) == 0 {
		return nil, schederr.InvalidRequest("restartShards requires at least one instance id")
	}

	wanted := make(map[int]bool, len(req.InstanceIDs))
	for _, id := range req.InstanceIDs {
		wanted[id] = true
	}

	tasks, err := storage.Read(s.facade, func(st storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return st.Tasks().ListTasksByJob(req.Job)
	})
	if err != nil {
		return nil, schederr.Storage(err, "list tasks for job %v", req.Job)
	}

	var restarted []string
	for _, t := range tasks {
		if !wanted[t.InstanceID] || !t.Status.IsActive() {
			continue
		}
		if err := s.host.UpdateState(t.TaskID, types.StatusRestarting, "restartShards requested", ""); err != nil {
			return nil, schederr.Internal(err, "drive task %s to RESTARTING", t.TaskID)
		}
		restarted = append(restarted, t.TaskID)
	}
	if len(restarted) == 0 {
		return nil, schederr.InvalidRequest("restartShards matched no active instances")
	}
	return ok("shards restarted", restarted), nil
}

func wrapForceTaskState(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.ForceTaskState(ctx, req.Payload.(ForceTaskStateRequest))
	}
}

// ForceTaskState is the admin escape hatch that drives one task directly to
// an arbitrary status, bypassing any caller-facing lock check. Illegal
// transitions are rejected by the state machine itself, not by this layer.
func (s *Server) ForceTaskState(ctx context.Context, req ForceTaskStateRequest) (*Response, error) {
	task, err := storage.Read(s.facade, func(st storage.StoreProvider) (*types.ScheduledTask, error) {
		t, _, err := st.Tasks().GetTask(req.TaskID)
		return t, err
	})
	if err != nil {
		return nil, schederr.Storage(err, "read task %s", req.TaskID)
	}
	if task == nil {
		return nil, schederr.InvalidRequest("task %s not found", req.TaskID)
	}

	if err := s.host.UpdateState(req.TaskID, req.Status, "forceTaskState requested", ""); err != nil {
		return nil, schederr.Internal(err, "force task %s to %s", req.TaskID, req.Status)
	}
	return ok("task state forced", nil), nil
}
