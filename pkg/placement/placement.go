// Package placement implements the placement action (§4.4): given one
// pending task, filter currently advertised resource offers down to those
// that satisfy the host's maintenance state, the task's resource request,
// and its constraints, reserve the first survivor, and commit the task's
// PENDING->ASSIGNED transition together with its host/port assignment in a
// single facade write.
package placement

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/clock"
	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/metrics"
	"github.com/ballast-sched/ballast/pkg/scheduler"
	"github.com/ballast-sched/ballast/pkg/statemachine"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// LaunchNotifier is told about a task that just won a placement. The actual
// executor/agent protocol that carries the launch instruction to the host
// is an external collaborator; this is only the hook.
type LaunchNotifier interface {
	NotifyLaunch(task *types.ScheduledTask)
}

// Action is the scheduler.Placer implementation.
type Action struct {
	facade        *storage.Facade
	host          *statemachine.Host
	sink          *scheduler.TaskSink
	offers        *OfferPool
	launch        LaunchNotifier
	clock         clock.Clock
	schedulerHost string
	logger        zerolog.Logger
}

// Config configures an Action at construction time.
type Config struct {
	Facade        *storage.Facade
	Host          *statemachine.Host
	Sink          *scheduler.TaskSink
	Offers        *OfferPool
	Launch        LaunchNotifier
	Clock         clock.Clock
	SchedulerHost string
}

// NewAction builds an Action from cfg.
func NewAction(cfg Config) *Action {
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	return &Action{
		facade:        cfg.Facade,
		host:          cfg.Host,
		sink:          cfg.Sink,
		offers:        cfg.Offers,
		launch:        cfg.Launch,
		clock:         c,
		schedulerHost: cfg.SchedulerHost,
		logger:        log.WithComponent("placement"),
	}
}

// Place implements scheduler.Placer.
func (a *Action) Place(ctx context.Context, taskID string) (bool, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PlacementDuration)

	task, err := storage.Read(a.facade, func(s storage.StoreProvider) (*types.ScheduledTask, error) {
		t, found, err := s.Tasks().GetTask(taskID)
		if err != nil || !found {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return false, fmt.Errorf("placement: load task: %w", err)
	}
	if task == nil || task.Status != types.StatusPending {
		// task vanished or was already moved on by a concurrent event; not a
		// placement failure, just nothing to do.
		return false, nil
	}

	jobKey := types.JobKey{Role: task.Role, Environment: task.Environment, JobName: task.JobName}
	jobActiveHosts, err := a.activeJobHosts(jobKey)
	if err != nil {
		return false, fmt.Errorf("placement: load job host set: %w", err)
	}

	now := a.clock.Now()
	for _, offer := range a.offers.Snapshot(now) {
		metrics.OffersConsideredTotal.Inc()

		mode, err := a.maintenanceMode(offer.SlaveHost)
		if err != nil {
			return false, err
		}
		if mode == types.MaintenanceDraining || mode == types.MaintenanceDrained {
			metrics.OffersRejectedTotal.WithLabelValues("draining").Inc()
			continue
		}
		if !fitsResources(offer, task.TaskConfig) {
			metrics.OffersRejectedTotal.WithLabelValues("resources").Inc()
			continue
		}

		attrs, err := a.hostAttributes(offer.SlaveHost)
		if err != nil {
			return false, err
		}
		satisfied, err := satisfiesConstraints(task.Constraints, offer.SlaveHost, attrs, jobActiveHosts)
		if err != nil {
			return false, err
		}
		if !satisfied {
			metrics.OffersRejectedTotal.WithLabelValues("constraints").Inc()
			continue
		}

		ports, ok := assignPorts(task.PortNames, offer.Ports)
		if !ok {
			metrics.OffersRejectedTotal.WithLabelValues("ports").Inc()
			continue
		}

		reserved, ok := a.offers.TryReserve(offer.OfferID)
		if !ok {
			// another group's attempt won it first; try the next candidate.
			continue
		}

		if a.commit(taskID, reserved, ports) {
			if a.launch != nil {
				placed := *task
				placed.Status = types.StatusAssigned
				placed.SlaveID = reserved.SlaveID
				placed.SlaveHost = reserved.SlaveHost
				placed.Ports = ports
				a.launch.NotifyLaunch(&placed)
			}
			return true, nil
		}
	}

	return false, nil
}

// commit stages the winning offer's assignment and fires the
// PENDING->ASSIGNED transition through the statemachine Host, which
// persists both in one TaskSink write. It reports whether the transition
// actually committed; on any failure it returns the offer to the pool so a
// later attempt can use it.
func (a *Action) commit(taskID string, offer types.ResourceOffer, ports []types.PortAssignment) bool {
	a.sink.StageAssignment(taskID, scheduler.Assignment{
		SlaveID:   offer.SlaveID,
		SlaveHost: offer.SlaveHost,
		Ports:     ports,
	})

	if err := a.host.UpdateState(taskID, types.StatusAssigned, "placed on "+offer.SlaveHost, a.schedulerHost); err != nil {
		a.logger.Error().Err(err).Str("task_id", taskID).Msg("placement commit failed")
		a.sink.DiscardAssignment(taskID)
		a.offers.Release(offer)
		return false
	}

	m, tracked := a.host.Machine(taskID)
	if !tracked || m.Status() != types.StatusAssigned {
		// the transition was illegal (e.g. the task moved on concurrently);
		// ApplyWorkCommands was never invoked, so the staged assignment is
		// still pending and must be discarded explicitly.
		a.sink.DiscardAssignment(taskID)
		a.offers.Release(offer)
		return false
	}
	return true
}

func (a *Action) maintenanceMode(host string) (types.MaintenanceMode, error) {
	return storage.Read(a.facade, func(s storage.StoreProvider) (types.MaintenanceMode, error) {
		return s.Scheduler().GetMaintenanceMode(host)
	})
}

func (a *Action) hostAttributes(host string) (*types.HostAttributes, error) {
	return storage.Read(a.facade, func(s storage.StoreProvider) (*types.HostAttributes, error) {
		attrs, _, err := s.Attributes().GetHostAttributes(host)
		return attrs, err
	})
}

func (a *Action) activeJobHosts(key types.JobKey) ([]*types.HostAttributes, error) {
	return storage.Read(a.facade, func(s storage.StoreProvider) ([]*types.HostAttributes, error) {
		tasks, err := s.Tasks().ListTasksByJob(key)
		if err != nil {
			return nil, err
		}
		var out []*types.HostAttributes
		for _, t := range tasks {
			if !t.Status.IsActive() || t.SlaveHost == "" {
				continue
			}
			attrs, _, err := s.Attributes().GetHostAttributes(t.SlaveHost)
			if err != nil {
				return nil, err
			}
			if attrs != nil {
				out = append(out, attrs)
			}
		}
		return out, nil
	})
}
