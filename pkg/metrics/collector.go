package metrics

import (
	"time"

	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// Collector periodically samples the transactional facade and refreshes the
// gauge metrics that can't be updated incrementally at the point of mutation
// (per-status task counts, per-mode host counts).
type Collector struct {
	facade *storage.Facade
	stopCh chan struct{}
}

// NewCollector creates a collector sampling facade every 15 seconds.
func NewCollector(facade *storage.Facade) *Collector {
	return &Collector{
		facade: facade,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic sampling in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectTaskMetrics()
	c.collectMaintenanceMetrics()
}

func (c *Collector) collectTaskMetrics() {
	tasks, err := storage.Read(c.facade, func(s storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return s.Tasks().ListTasks()
	})
	if err != nil {
		return
	}

	counts := make(map[types.TaskStatus]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	for _, status := range []types.TaskStatus{
		types.StatusInit, types.StatusPending, types.StatusThrottled, types.StatusAssigned,
		types.StatusStarting, types.StatusRunning, types.StatusPreempting, types.StatusRestarting,
		types.StatusKilling, types.StatusFinished, types.StatusFailed, types.StatusKilled,
		types.StatusLost, types.StatusUnknown,
	} {
		TasksByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

func (c *Collector) collectMaintenanceMetrics() {
	modes, err := storage.Read(c.facade, func(s storage.StoreProvider) (map[string]types.MaintenanceMode, error) {
		return s.Scheduler().ListMaintenance()
	})
	if err != nil {
		return
	}

	counts := make(map[types.MaintenanceMode]int)
	for _, mode := range modes {
		counts[mode]++
	}
	for _, mode := range []types.MaintenanceMode{
		types.MaintenanceNone, types.MaintenanceScheduled, types.MaintenanceDraining, types.MaintenanceDrained,
	} {
		HostsByMaintenanceMode.WithLabelValues(string(mode)).Set(float64(counts[mode]))
	}
}
