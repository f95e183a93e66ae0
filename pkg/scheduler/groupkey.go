package scheduler

import (
	"fmt"

	"github.com/mitchellh/hashstructure"

	"github.com/ballast-sched/ballast/pkg/types"
)

// groupFingerprint is the scheduling-relevant subset of a TaskConfig: two
// configs equivalent under this subset schedule identically and therefore
// share a TaskGroup.
type groupFingerprint struct {
	Role        string
	Environment string
	JobName     string
	CPU         float64
	RAMMB       int64
	DiskMB      int64
	PortNames   []string
	Container   types.ContainerSpec
	Constraints []types.Constraint
	Tier        types.Tier
}

// GroupKeyOf computes the GroupKey for cfg by hashing its scheduling-
// relevant fields. Command, IsService, MaxTaskFailures, and Priority are
// deliberately excluded: they affect task lifecycle, not placement
// feasibility.
func GroupKeyOf(cfg types.TaskConfig) types.GroupKey {
	fp := groupFingerprint{
		Role:        cfg.Role,
		Environment: cfg.Environment,
		JobName:     cfg.JobName,
		CPU:         cfg.CPU,
		RAMMB:       cfg.RAMMB,
		DiskMB:      cfg.DiskMB,
		PortNames:   cfg.PortNames,
		Container:   cfg.Container,
		Constraints: cfg.Constraints,
		Tier:        cfg.Tier,
	}
	h, err := hashstructure.Hash(fp, nil)
	if err != nil {
		// hashstructure only fails on unsupported field types; groupFingerprint
		// is plain data, so this is unreachable in practice.
		return types.GroupKey(fmt.Sprintf("%s/%s/%s", cfg.Role, cfg.Environment, cfg.JobName))
	}
	return types.GroupKey(fmt.Sprintf("%s/%s/%s#%x", cfg.Role, cfg.Environment, cfg.JobName, h))
}
