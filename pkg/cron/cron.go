package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/cronexpr"
	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/clock"
	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/statemachine"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// Scheduler launches instances of cron-templated jobs, either on explicit
// request (startCronJob) or automatically once a job's cronSchedule next
// comes due.
type Scheduler struct {
	facade *storage.Facade
	host   *statemachine.Host
	clk    clock.Clock
	logger zerolog.Logger

	mu        sync.Mutex
	schedules map[types.JobKey]*cronexpr.Expression
	lastFire  map[types.JobKey]time.Time
}

// New builds a Scheduler over facade. Every task it launches is registered
// with host immediately after it is persisted — host.Track must run before
// any other component (placement, preemption) can drive that task's first
// state transition.
func New(facade *storage.Facade, host *statemachine.Host, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		facade:    facade,
		host:      host,
		clk:       clk,
		logger:    log.WithComponent("cron"),
		schedules: make(map[types.JobKey]*cronexpr.Expression),
		lastFire:  make(map[types.JobKey]time.Time),
	}
}

// Run evaluates every cron job's schedule once per interval until ctx is
// done. Launch failures are logged and do not stop the loop — a single bad
// tick must not take down every other cron job sharing it.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clk.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			if err := s.Tick(s.clk.Now()); err != nil {
				s.logger.Error().Err(err).Msg("cron tick failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Tick launches every cron job whose schedule has come due as of now.
func (s *Scheduler) Tick(now time.Time) error {
	jobs, err := storage.Read(s.facade, func(st storage.StoreProvider) ([]*types.JobConfiguration, error) {
		return st.Jobs().ListJobs("")
	})
	if err != nil {
		return fmt.Errorf("cron: list jobs: %w", err)
	}

	for _, job := range jobs {
		if job.CronSchedule == "" {
			continue
		}
		due, err := s.due(job, now)
		if err != nil {
			s.logger.Error().Err(err).Str("job", jobKeyString(job.Key)).Msg("invalid cron schedule")
			continue
		}
		if !due {
			continue
		}
		if _, err := s.StartCronJob(job.Key); err != nil {
			s.logger.Error().Err(err).Str("job", jobKeyString(job.Key)).Msg("cron launch failed")
			continue
		}
		s.mu.Lock()
		s.lastFire[job.Key] = now
		s.mu.Unlock()
	}
	return nil
}

// due reports whether job's cronSchedule has a fire time in (lastFire, now].
// The first time a job is seen, lastFire defaults to now so it fires on its
// next natural occurrence rather than immediately on daemon startup.
func (s *Scheduler) due(job *types.JobConfiguration, now time.Time) (bool, error) {
	s.mu.Lock()
	expr, ok := s.schedules[job.Key]
	if !ok {
		parsed, err := cronexpr.Parse(job.CronSchedule)
		if err != nil {
			s.mu.Unlock()
			return false, err
		}
		expr = parsed
		s.schedules[job.Key] = expr
	}
	last, ok := s.lastFire[job.Key]
	if !ok {
		s.lastFire[job.Key] = now
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	next := expr.Next(last)
	return !next.IsZero() && !next.After(now), nil
}

// StartCronJob launches job's configured instance count as fresh PENDING
// tasks from its stored template. It returns the launched task ids.
func (s *Scheduler) StartCronJob(key types.JobKey) ([]string, error) {
	job, err := storage.Read(s.facade, func(st storage.StoreProvider) (*types.JobConfiguration, error) {
		j, found, err := st.Jobs().GetJob(key)
		if err != nil || !found {
			return nil, err
		}
		return j, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cron: load job %s: %w", jobKeyString(key), err)
	}
	if job == nil {
		return nil, fmt.Errorf("cron: job %s not found", jobKeyString(key))
	}

	now := s.clk.Now()
	ids := make([]string, 0, job.InstanceCount)
	for i := 0; i < job.InstanceCount; i++ {
		taskID := uuid.NewString()
		task := &types.ScheduledTask{
			AssignedTask: types.AssignedTask{
				TaskConfig: job.Template,
				TaskID:     taskID,
				InstanceID: i,
			},
			Status: types.StatusPending,
			Events: []types.TaskEvent{{
				Timestamp: now,
				Status:    types.StatusPending,
				Message:   "launched from cron schedule " + job.CronSchedule,
			}},
		}
		_, err := storage.Write(s.facade, storage.NewPutTaskCommand(task), func(st storage.MutableStoreProvider) (struct{}, error) {
			return struct{}{}, st.Tasks().PutTask(task)
		})
		if err != nil {
			return ids, fmt.Errorf("cron: launch instance %d of %s: %w", i, jobKeyString(key), err)
		}
		s.host.Track(taskID, types.StatusPending, job.Template.IsService, job.Template.MaxTaskFailures, 0)
		ids = append(ids, taskID)
	}

	s.logger.Info().Str("job", jobKeyString(key)).Int("instances", len(ids)).Msg("cron job launched")
	return ids, nil
}

// ReplaceCronTemplate overwrites job's stored configuration and clears any
// cached schedule expression, so a changed cronSchedule takes effect on the
// very next tick instead of continuing to fire on the old cadence.
func (s *Scheduler) ReplaceCronTemplate(job *types.JobConfiguration) error {
	_, err := storage.Write(s.facade, storage.NewPutJobCommand(job), func(st storage.MutableStoreProvider) (struct{}, error) {
		return struct{}{}, st.Jobs().PutJob(job)
	})
	if err != nil {
		return fmt.Errorf("cron: replace template %s: %w", jobKeyString(job.Key), err)
	}

	s.mu.Lock()
	delete(s.schedules, job.Key)
	delete(s.lastFire, job.Key)
	s.mu.Unlock()
	return nil
}

func jobKeyString(k types.JobKey) string {
	return k.Role + "/" + k.Environment + "/" + k.JobName
}
