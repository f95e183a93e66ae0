// Package quota implements the per-role resource admission check: before
// createJob or addInstances creates new production-tier tasks, the sum of
// resources already held by that role's production active tasks plus the
// candidate's resources must not exceed the role's stored Quota.
package quota

import (
	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/metrics"
	"github.com/ballast-sched/ballast/pkg/schederr"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// Checker enforces per-role quota against the facade's live task set.
// Non-production tiers (preemptible, revocable) are not quota-checked: only
// production capacity is guaranteed, which is what a role's Quota reserves.
type Checker struct {
	facade *storage.Facade
	logger zerolog.Logger
}

// New constructs a Checker backed by facade.
func New(facade *storage.Facade) *Checker {
	return &Checker{facade: facade, logger: log.WithComponent("quota")}
}

// Usage is the sum of resources held by a role's production active tasks.
type Usage struct {
	CPU    float64
	RAMMB  int64
	DiskMB int64
}

// Add returns u with candidate's resources added.
func (u Usage) Add(cpu float64, ramMB, diskMB int64) Usage {
	return Usage{CPU: u.CPU + cpu, RAMMB: u.RAMMB + ramMB, DiskMB: u.DiskMB + diskMB}
}

// CurrentUsage sums the resources of role's production, active tasks.
func (c *Checker) CurrentUsage(role string) (Usage, error) {
	return storage.Read(c.facade, func(s storage.StoreProvider) (Usage, error) {
		return c.sumUsage(s, role)
	})
}

func (c *Checker) sumUsage(s storage.StoreProvider, role string) (Usage, error) {
	tasks, err := s.Tasks().ListTasks()
	if err != nil {
		return Usage{}, schederr.Storage(err, "list tasks for quota check")
	}

	var u Usage
	for _, t := range tasks {
		if t.Role != role || t.Tier != types.TierProduction || !t.Status.IsActive() {
			continue
		}
		u = u.Add(t.CPU, t.RAMMB, t.DiskMB)
	}
	return u, nil
}

// CheckAdmission verifies that adding a production task described by
// config, instanceCount times, would not push role's usage over its stored
// Quota. Non-production tiers are always admitted. Returns a ScheduleError
// if quota would be exceeded.
func (c *Checker) CheckAdmission(role string, config types.TaskConfig, instanceCount int) error {
	if config.Tier != types.TierProduction {
		return nil
	}

	_, err := storage.Read(c.facade, func(s storage.StoreProvider) (struct{}, error) {
		q, found, err := s.Quotas().GetQuota(role)
		if err != nil {
			return struct{}{}, schederr.Storage(err, "read quota for role %s", role)
		}
		if !found {
			metrics.QuotaDeniedTotal.WithLabelValues(role).Inc()
			return struct{}{}, schederr.Schedule("role %s has no quota configured", role)
		}

		usage, err := c.sumUsage(s, role)
		if err != nil {
			return struct{}{}, err
		}

		wantCPU := usage.CPU + config.CPU*float64(instanceCount)
		wantRAM := usage.RAMMB + config.RAMMB*int64(instanceCount)
		wantDisk := usage.DiskMB + config.DiskMB*int64(instanceCount)

		if wantCPU > q.CPU || wantRAM > q.RAMMB || wantDisk > q.DiskMB {
			metrics.QuotaDeniedTotal.WithLabelValues(role).Inc()
			return struct{}{}, schederr.Schedule(
				"role %s quota exceeded: want cpu=%.2f ram=%d disk=%d, quota cpu=%.2f ram=%d disk=%d",
				role, wantCPU, wantRAM, wantDisk, q.CPU, q.RAMMB, q.DiskMB,
			)
		}
		return struct{}{}, nil
	})
	return err
}

// SetQuota stores role's quota, overwriting any existing value.
func (c *Checker) SetQuota(q *types.Quota) error {
	_, err := storage.Write(c.facade, storage.NewPutQuotaCommand(q), func(s storage.MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Quotas().PutQuota(q)
	})
	if err != nil {
		return err
	}
	c.logger.Info().Str("role", q.Role).Msg("quota updated")
	return nil
}
