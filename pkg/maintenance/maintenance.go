// Package maintenance implements the host drain lifecycle (§4.8):
// NONE -> SCHEDULED -> DRAINING -> DRAINED -> NONE, cooperating with the
// per-task state machine to evict active tasks off a draining host.
package maintenance

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/events"
	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/statemachine"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// Controller drives the host maintenance state machine.
type Controller struct {
	facade        *storage.Facade
	host          *statemachine.Host
	broker        *events.Broker
	schedulerHost string
	logger        zerolog.Logger

	sub    events.Subscriber
	stopCh chan struct{}
	doneCh chan struct{}
}

// Config configures a Controller at construction time.
type Config struct {
	Facade        *storage.Facade
	Host          *statemachine.Host
	Broker        *events.Broker
	SchedulerHost string
}

// NewController builds a Controller from cfg.
func NewController(cfg Config) *Controller {
	return &Controller{
		facade:        cfg.Facade,
		host:          cfg.Host,
		broker:        cfg.Broker,
		schedulerHost: cfg.SchedulerHost,
		logger:        log.WithComponent("maintenance"),
	}
}

// Start subscribes to task lifecycle events so a draining host can be
// reclassified DRAINED the moment its last active task leaves.
func (c *Controller) Start() {
	c.sub = c.broker.Subscribe()
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.run()
}

// Stop unsubscribes and waits for the event loop to exit.
func (c *Controller) Stop() {
	close(c.stopCh)
	<-c.doneCh
	c.broker.Unsubscribe(c.sub)
}

func (c *Controller) run() {
	defer close(c.doneCh)
	for {
		select {
		case evt, ok := <-c.sub:
			if !ok {
				return
			}
			if evt.Type == events.EventTaskPut || evt.Type == events.EventTaskDeleted {
				if err := c.ReconcileDrains(); err != nil {
					c.logger.Error().Err(err).Msg("drain reconciliation failed")
				}
			}
		case <-c.stopCh:
			return
		}
	}
}

// StartMaintenance moves each host from NONE to SCHEDULED. A host already
// past NONE is left untouched, since a caller scheduling maintenance
// twice is not an error but also not a reason to regress its state.
func (c *Controller) StartMaintenance(hosts []string) error {
	for _, host := range hosts {
		mode, err := c.mode(host)
		if err != nil {
			return err
		}
		if mode != types.MaintenanceNone {
			continue
		}
		if err := c.setMode(host, types.MaintenanceScheduled); err != nil {
			return err
		}
	}
	return nil
}

// Drain moves each host to DRAINING and transitions every active task on
// it toward RESTARTING, which the state machine answers with a KILL work
// command, and with a RESCHEDULE once the task reaches KILLED or LOST.
func (c *Controller) Drain(hosts []string) error {
	for _, host := range hosts {
		if err := c.setMode(host, types.MaintenanceDraining); err != nil {
			return err
		}
		if err := c.evictActiveTasks(host); err != nil {
			return err
		}
	}
	return c.ReconcileDrains()
}

// EndMaintenance returns each host to NONE regardless of its current mode;
// this is an operator override, not a lifecycle step gated on drain
// completion.
func (c *Controller) EndMaintenance(hosts []string) error {
	for _, host := range hosts {
		if err := c.setMode(host, types.MaintenanceNone); err != nil {
			return err
		}
	}
	return nil
}

// Status returns the maintenance mode of each requested host, or of every
// host with a recorded mode if hosts is empty.
func (c *Controller) Status(hosts []string) (map[string]types.MaintenanceMode, error) {
	if len(hosts) == 0 {
		return storage.Read(c.facade, func(s storage.StoreProvider) (map[string]types.MaintenanceMode, error) {
			return s.Scheduler().ListMaintenance()
		})
	}
	out := make(map[string]types.MaintenanceMode, len(hosts))
	for _, host := range hosts {
		mode, err := c.mode(host)
		if err != nil {
			return nil, err
		}
		out[host] = mode
	}
	return out, nil
}

// ReconcileDrains flips every DRAINING host with zero active tasks to
// DRAINED. It is called after Drain and on every subsequent task lifecycle
// event, since a host only finishes draining once its last active task
// has actually left.
func (c *Controller) ReconcileDrains() error {
	modes, err := storage.Read(c.facade, func(s storage.StoreProvider) (map[string]types.MaintenanceMode, error) {
		return s.Scheduler().ListMaintenance()
	})
	if err != nil {
		return fmt.Errorf("maintenance: list modes: %w", err)
	}
	for host, mode := range modes {
		if mode != types.MaintenanceDraining {
			continue
		}
		active, err := c.hasActiveTasks(host)
		if err != nil {
			return err
		}
		if !active {
			if err := c.setMode(host, types.MaintenanceDrained); err != nil {
				return err
			}
			c.logger.Info().Str("host", host).Msg("host finished draining")
		}
	}
	return nil
}

func (c *Controller) evictActiveTasks(host string) error {
	tasks, err := storage.Read(c.facade, func(s storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return s.Tasks().ListTasks()
	})
	if err != nil {
		return fmt.Errorf("maintenance: list tasks: %w", err)
	}
	for _, t := range tasks {
		if t.SlaveHost != host || !t.Status.IsActive() {
			continue
		}
		if err := c.host.UpdateState(t.TaskID, types.StatusRestarting, "host draining", c.schedulerHost); err != nil {
			return fmt.Errorf("maintenance: evict task %s: %w", t.TaskID, err)
		}
	}
	return nil
}

func (c *Controller) hasActiveTasks(host string) (bool, error) {
	tasks, err := storage.Read(c.facade, func(s storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return s.Tasks().ListTasks()
	})
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if t.SlaveHost == host && t.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (c *Controller) mode(host string) (types.MaintenanceMode, error) {
	return storage.Read(c.facade, func(s storage.StoreProvider) (types.MaintenanceMode, error) {
		return s.Scheduler().GetMaintenanceMode(host)
	})
}

func (c *Controller) setMode(host string, mode types.MaintenanceMode) error {
	_, err := storage.Write(c.facade, storage.NewSetMaintenanceCommand(host, mode),
		func(s storage.MutableStoreProvider) (struct{}, error) {
			return struct{}{}, s.Scheduler().SetMaintenanceMode(host, mode)
		})
	return err
}
