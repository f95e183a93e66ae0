// Package preempt implements the preemptor (§4.5): when a task cannot be
// placed, look for a lower-priority running task whose resources would
// free up enough room, and drive it toward termination so the scheduling
// loop can retry the original candidate against the freed capacity.
package preempt

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/metrics"
	"github.com/ballast-sched/ballast/pkg/statemachine"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// Preemptor is the scheduler.Preemptor implementation.
type Preemptor struct {
	facade        *storage.Facade
	host          *statemachine.Host
	schedulerHost string
	logger        zerolog.Logger
}

// Config configures a Preemptor at construction time.
type Config struct {
	Facade        *storage.Facade
	Host          *statemachine.Host
	SchedulerHost string
}

// New builds a Preemptor from cfg.
func New(cfg Config) *Preemptor {
	return &Preemptor{
		facade:        cfg.Facade,
		host:          cfg.Host,
		schedulerHost: cfg.SchedulerHost,
		logger:        log.WithComponent("preempt"),
	}
}

// tierRank orders tiers by how readily they yield to a higher tier: a
// production task may preempt a preemptible or revocable one; a
// preemptible task may preempt only a revocable one; revocable preempts
// nothing.
func tierRank(t types.Tier) int {
	switch t {
	case types.TierProduction:
		return 2
	case types.TierPreemptible:
		return 1
	default:
		return 0
	}
}

// outranks reports whether candidate is allowed to preempt victim: a
// strictly higher tier always wins; within the same tier, the higher
// Priority wins.
func outranks(candidate, victim types.TaskConfig) bool {
	cr, vr := tierRank(candidate.Tier), tierRank(victim.Tier)
	if cr != vr {
		return cr > vr
	}
	return candidate.Priority > victim.Priority
}

func fits(victim, candidate types.TaskConfig) bool {
	return victim.CPU >= candidate.CPU && victim.RAMMB >= candidate.RAMMB && victim.DiskMB >= candidate.DiskMB
}

// FindVictim implements scheduler.Preemptor. It reports whether a victim
// was found and driven toward termination; it does not itself retry the
// candidate's placement, since that is the scheduling loop's job on its
// next pass through the group.
func (p *Preemptor) FindVictim(ctx context.Context, taskID string) (bool, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PreemptionSearchDuration)

	candidate, err := storage.Read(p.facade, func(s storage.StoreProvider) (*types.ScheduledTask, error) {
		t, found, err := s.Tasks().GetTask(taskID)
		if err != nil || !found {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return false, fmt.Errorf("preempt: load candidate: %w", err)
	}
	if candidate == nil || candidate.Tier == types.TierRevocable {
		// a revocable candidate can never preempt anything.
		return false, nil
	}

	running, err := storage.Read(p.facade, func(s storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return s.Tasks().ListTasksByStatus(types.StatusRunning)
	})
	if err != nil {
		return false, fmt.Errorf("preempt: list running tasks: %w", err)
	}

	victim := selectVictim(candidate.TaskConfig, running)
	if victim == nil {
		return false, nil
	}

	if err := p.host.UpdateState(victim.TaskID, types.StatusPreempting,
		"preempted for "+taskID, p.schedulerHost); err != nil {
		return false, fmt.Errorf("preempt: transition victim: %w", err)
	}

	p.logger.Info().
		Str("candidate_task_id", taskID).
		Str("victim_task_id", victim.TaskID).
		Str("victim_host", victim.SlaveHost).
		Msg("preempting task to make room for higher-priority candidate")
	metrics.PreemptionsTotal.WithLabelValues(string(victim.Tier)).Inc()
	return true, nil
}

// selectVictim picks, among the running tasks that outranks() lets the
// candidate preempt and that alone free enough resources, the cheapest
// sufficient victim (least CPU) to minimize collateral disruption. The
// victims' own tier and priority play no part in the choice.
func selectVictim(candidate types.TaskConfig, running []*types.ScheduledTask) *types.ScheduledTask {
	var best *types.ScheduledTask
	for _, t := range running {
		if !outranks(candidate, t.TaskConfig) {
			continue
		}
		if !fits(t.TaskConfig, candidate) {
			continue
		}
		if best == nil || t.CPU < best.CPU {
			best = t
		}
	}
	return best
}
