/*
Package types defines the core data structures shared across the scheduler
core: task configuration, the scheduled-task lifecycle record, job
configuration, locks, quotas, host attributes, and maintenance state.

These types are the vocabulary every other package in this module shares —
storage, the state machine, the scheduling loop, placement, preemption, and
the API layer all operate on them rather than on package-private shapes.

# Architecture

The types package is deliberately thin: it has no behavior beyond
classification helpers (IsActive, IsTerminal) and carries no dependency on
storage, scheduling, or transport. It defines:

  - Workload description (TaskConfig, ContainerSpec, Constraint)
  - Scheduled instances (AssignedTask, ScheduledTask, TaskEvent)
  - Job templates (JobConfiguration, JobKey, GroupKey)
  - Coordination primitives (Lock, LockKey, Quota)
  - Placement inputs (HostAttribute, HostAttributes, ResourceOffer, PortRange)
  - Host lifecycle (MaintenanceMode)

# Core Types

Workload description:
  - TaskConfig: immutable description of a workload, independent of instance
    count; carries a Tier (production/preemptible/revocable) and Priority
    used by the preemptor to rank victims.
  - ContainerSpec: opaque image/env payload, uninterpreted by this module.
  - Constraint: a placement restriction matched against HostAttributes.

Scheduled instances:
  - AssignedTask: a TaskConfig bound to one instance ID, optionally already
    bound to a host and ports.
  - ScheduledTask: an AssignedTask plus its current TaskStatus, failure
    count, and append-only TaskEvent history.
  - TaskStatus: one of the fourteen states in the task state machine; see
    pkg/statemachine for the transition table.

Job templates:
  - JobConfiguration: the stored template for a job, including an optional
    cron schedule. Instance-job configurations are derived from their live
    tasks and are never persisted as a JobConfiguration in their own right.
  - JobKey / GroupKey: JobKey identifies a job's coordinates; GroupKey is the
    coarser equivalence class of TaskConfigs that schedule identically.

Coordination:
  - Lock / LockKey: an advisory exclusion token guarding mutating job
    operations.
  - Quota: a per-role resource ceiling checked against production-tier
    active tasks before admission.

Placement inputs:
  - HostAttribute / HostAttributes: the attribute set a host advertises,
    matched against Constraints.
  - ResourceOffer / PortRange: a time-bounded slice of host capacity offered
    to the scheduling loop.

Host lifecycle:
  - MaintenanceMode: a host's position in the drain lifecycle, from NONE
    through SCHEDULED, DRAINING, to DRAINED.

# Usage

Describing a job and its first scheduled task:

	cfg := types.TaskConfig{
		Role:        "search",
		Environment: "prod",
		JobName:     "indexer",
		CPU:         2,
		RAMMB:       4096,
		Tier:        types.TierProduction,
		Priority:    10,
	}

	task := types.ScheduledTask{
		AssignedTask: types.AssignedTask{
			TaskConfig: cfg,
			TaskID:     uuid.New().String(),
			InstanceID: 0,
		},
		Status: types.StatusPending,
	}

# State Machine

TaskStatus values partition into active and terminal sets; IsActive and
IsTerminal classify a status without the caller needing to enumerate the
full set. The actual transition graph between statuses — what events move a
task from one to another, and what side effects each transition emits — is
owned by pkg/statemachine, not by this package.

# Thread Safety

Values in this package carry no synchronization of their own:
  - Read-safe: a value may be read concurrently once published.
  - Write-unsafe: mutation must be synchronized by the caller.
  - Copy-preferred: callers that hand a ScheduledTask out of the storage
    facade receive a deep copy (see pkg/storage), so in-place mutation by
    one goroutine is never visible to another.

# See Also

  - pkg/statemachine for the TaskStatus transition graph
  - pkg/storage for the persisted representation of these types
  - pkg/scheduler for GroupKey derivation and the scheduling loop
  - pkg/placement for how ResourceOffer and Constraint are consumed
*/
package types
