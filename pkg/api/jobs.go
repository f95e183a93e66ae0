package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/ballast-sched/ballast/pkg/schederr"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

func wrapCreateJob(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.CreateJob(ctx, req.Payload.(CreateJobRequest))
	}
}

// CreateJob admits req.TaskConfig against req.Job.Role's quota, then
// persists either a JobConfiguration (cron jobs) or req.Job.InstanceCount
// freshly-tracked PENDING tasks (instance jobs). A lock already held on the
// job requires req.LockToken to match.
func (s *Server) CreateJob(ctx context.Context, req CreateJobRequest) (*Response, error) {
	key := req.Job.Key
	if err := s.locks.ValidateIfLocked(types.LockKey{Job: key}, req.LockToken); err != nil {
		return nil, err
	}
	if req.Job.InstanceCount <= 0 {
		return nil, schederr.InvalidRequest("job %v must request at least one instance", key)
	}
	if err := s.quota.CheckAdmission(key.Role, req.TaskConfig, req.Job.InstanceCount); err != nil {
		return nil, err
	}

	if req.Job.CronSchedule != "" {
		job := req.Job
		job.Template = req.TaskConfig
		_, err := storage.Write(s.facade, storage.NewPutJobCommand(&job), func(st storage.MutableStoreProvider) (struct{}, error) {
			return struct{}{}, st.Jobs().PutJob(&job)
		})
		if err != nil {
			return nil, schederr.Storage(err, "persist cron job %v", key)
		}
		return ok("cron job created", job), nil
	}

	ids := make([]string, 0, req.Job.InstanceCount)
	for i := 0; i < req.Job.InstanceCount; i++ {
		taskID := uuid.NewString()
		task := &types.ScheduledTask{
			AssignedTask: types.AssignedTask{TaskConfig: req.TaskConfig, TaskID: taskID, InstanceID: i},
			Status:       types.StatusPending,
		}
		_, err := storage.Write(s.facade, storage.NewPutTaskCommand(task), func(st storage.MutableStoreProvider) (struct{}, error) {
			return struct{}{}, st.Tasks().PutTask(task)
		})
		if err != nil {
			return nil, schederr.Storage(err, "persist instance %d of job %v", i, key)
		}
		// Tracked synchronously here, not via the event broker: a dropped
		// task.put notification would permanently break this task's first
		// transition (the scheduling loop picks up a missed task.put only at
		// its next start-up scan).
		s.host.Track(taskID, types.StatusPending, req.TaskConfig.IsService, req.TaskConfig.MaxTaskFailures, 0)
		ids = append(ids, taskID)
	}
	return ok("job created", ids), nil
}

func wrapReplaceCronTemplate(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.ReplaceCronTemplate(ctx, req.Payload.(ReplaceCronTemplateRequest))
	}
}

// ReplaceCronTemplate overwrites a cron job's stored template and schedule.
func (s *Server) ReplaceCronTemplate(ctx context.Context, req ReplaceCronTemplateRequest) (*Response, error) {
	if err := s.locks.ValidateIfLocked(types.LockKey{Job: req.Job.Key}, req.LockToken); err != nil {
		return nil, err
	}
	if req.Job.CronSchedule == "" {
		return nil, schederr.InvalidRequest("replaceCronTemplate requires a non-empty cron schedule")
	}
	if err := s.cron.ReplaceCronTemplate(&req.Job); err != nil {
		return nil, schederr.Schedule("replace cron template %v: %v", req.Job.Key, err)
	}
	return ok("cron template replaced", nil), nil
}

func wrapPopulateJobConfig(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.PopulateJobConfig(ctx, req.Payload.(PopulateJobConfigRequest))
	}
}

// PopulateJobConfig fills in the defaults a TaskConfig receives before
// admission, without touching storage: an unset Tier defaults to
// preemptible (conservative — only explicit requests get production
// guarantees) and an unset MaxTaskFailures defaults to unlimited retries.
func (s *Server) PopulateJobConfig(ctx context.Context, req PopulateJobConfigRequest) (*Response, error) {
	cfg := req.TaskConfig
	if cfg.Tier == "" {
		cfg.Tier = types.TierPreemptible
	}
	if cfg.MaxTaskFailures == 0 {
		cfg.MaxTaskFailures = -1
	}
	return ok("job config populated", cfg), nil
}

func wrapStartCronJob(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.StartCronJob(ctx, req.Payload.(StartCronJobRequest))
	}
}

// StartCronJob launches an immediate, out-of-schedule run of a cron job.
func (s *Server) StartCronJob(ctx context.Context, req StartCronJobRequest) (*Response, error) {
	ids, err := s.cron.StartCronJob(req.Job)
	if err != nil {
		return nil, schederr.Schedule("start cron job %v: %v", req.Job, err)
	}
	return ok("cron job started", ids), nil
}

func wrapAddInstances(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.AddInstances(ctx, req.Payload.(AddInstancesRequest))
	}
}

// AddInstances admits and launches additional instances of an existing job
// at the given instance ids, fresh PENDING tasks tracked the same way
// CreateJob's are. An instance id already held by a non-terminal task is a
// compare-and-swap-style conflict, not a reason to fail the whole rewrite:
// conflicts are collected and, as long as at least one instance id was
// free, reported as a joined error list on a WARNING response rather than
// aborting the instances that succeeded.
func (s *Server) AddInstances(ctx context.Context, req AddInstancesRequest) (*Response, error) {
	if err := s.locks.ValidateIfLocked(types.LockKey{Job: req.Job}, req.LockToken); err != nil {
		return nil, err
	}
	if len(req.InstanceIDs) == 0 {
		return nil, schederr.InvalidRequest("addInstances requires at least one instance id")
	}
	if err := s.quota.CheckAdmission(req.Job.Role, req.TaskConfig, len(req.InstanceIDs)); err != nil {
		return nil, err
	}

	existing, err := storage.Read(s.facade, func(st storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return st.Tasks().ListTasksByJob(req.Job)
	})
	if err != nil {
		return nil, schederr.Storage(err, "list existing instances of job %v", req.Job)
	}
	live := make(map[int]bool, len(existing))
	for _, t := range existing {
		if !t.Status.IsTerminal() {
			live[t.InstanceID] = true
		}
	}

	ids := make([]string, 0, len(req.InstanceIDs))
	var conflicts *multierror.Error
	for _, instanceID := range req.InstanceIDs {
		if live[instanceID] {
			conflicts = multierror.Append(conflicts, fmt.Errorf("instance %d of job %v already has a live task", instanceID, req.Job))
			continue
		}
		taskID := uuid.NewString()
		task := &types.ScheduledTask{
			AssignedTask: types.AssignedTask{TaskConfig: req.TaskConfig, TaskID: taskID, InstanceID: instanceID},
			Status:       types.StatusPending,
		}
		_, err := storage.Write(s.facade, storage.NewPutTaskCommand(task), func(st storage.MutableStoreProvider) (struct{}, error) {
			return struct{}{}, st.Tasks().PutTask(task)
		})
		if err != nil {
			return nil, schederr.Storage(err, "persist added instance %d of job %v", instanceID, req.Job)
		}
		s.host.Track(taskID, types.StatusPending, req.TaskConfig.IsService, req.TaskConfig.MaxTaskFailures, 0)
		ids = append(ids, taskID)
	}

	if conflicts != nil {
		if len(ids) == 0 {
			return nil, schederr.InvalidRequest("addInstances: %v", conflicts)
		}
		return warn(fmt.Sprintf("instances added with conflicts: %v", conflicts), ids), nil
	}
	return ok("instances added", ids), nil
}
