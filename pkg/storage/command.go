package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ballast-sched/ballast/pkg/types"
)

// Op names a mutation recorded in the durable log. Every Op except
// OpTaskTransition corresponds to one MutableStoreProvider method, so replay
// can dispatch such a Command straight back into the store method that
// produced it; OpTaskTransition records a whole state-machine transition
// (see TaskTransitionCommand).
type Op string

const (
	OpPutTask           Op = "put_task"
	OpDeleteTask        Op = "delete_task"
	OpPutJob            Op = "put_job"
	OpDeleteJob         Op = "delete_job"
	OpPutQuota          Op = "put_quota"
	OpPutLock           Op = "put_lock"
	OpDeleteLock        Op = "delete_lock"
	OpPutAttributes     Op = "put_attributes"
	OpSetMaintenance    Op = "set_maintenance"
	OpTaskTransition    Op = "task_transition"
)

// Command is one opaque mutation record appended to the log per committed
// write. Grounded on cuemby-warren/pkg/manager/fsm.go's Command{Op, Data}.
type Command struct {
	Op   Op              `json:"op"`
	Data json.RawMessage `json:"data"`
}

func newCommand(op Op, payload any) (Command, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, fmt.Errorf("storage: encode command %s: %w", op, err)
	}
	return Command{Op: op, Data: data}, nil
}

// mustCommand builds a Command or panics. Every payload accepted here is a
// concrete struct under this module's control, so encoding failure would
// mean a programming error (an unsupported field type), not a runtime
// condition callers should plumb an error return through for.
func mustCommand(op Op, payload any) Command {
	cmd, err := newCommand(op, payload)
	if err != nil {
		panic(err)
	}
	return cmd
}

// NewPutTaskCommand builds the log record for upserting task.
func NewPutTaskCommand(task *types.ScheduledTask) Command {
	return mustCommand(OpPutTask, task)
}

// NewDeleteTaskCommand builds the log record for removing taskID.
func NewDeleteTaskCommand(taskID string) Command {
	return mustCommand(OpDeleteTask, deleteTaskPayload{TaskID: taskID})
}

// NewPutJobCommand builds the log record for upserting a job configuration.
func NewPutJobCommand(job *types.JobConfiguration) Command {
	return mustCommand(OpPutJob, job)
}

// NewDeleteJobCommand builds the log record for removing a job.
func NewDeleteJobCommand(key types.JobKey) Command {
	return mustCommand(OpDeleteJob, deleteJobPayload{Key: key})
}

// NewPutQuotaCommand builds the log record for upserting a role quota.
func NewPutQuotaCommand(quota *types.Quota) Command {
	return mustCommand(OpPutQuota, quota)
}

// NewPutLockCommand builds the log record for upserting lock.
func NewPutLockCommand(lock *types.Lock) Command {
	return mustCommand(OpPutLock, lock)
}

// NewDeleteLockCommand builds the log record for removing the lock held at key.
func NewDeleteLockCommand(key types.LockKey) Command {
	return mustCommand(OpDeleteLock, deleteLockPayload{Key: key})
}

// NewPutAttributesCommand builds the log record for refreshing a host's
// attribute set.
func NewPutAttributesCommand(attrs *types.HostAttributes) Command {
	return mustCommand(OpPutAttributes, attrs)
}

// NewSetMaintenanceCommand builds the log record for setting host's
// maintenance mode.
func NewSetMaintenanceCommand(host string, mode types.MaintenanceMode) Command {
	return mustCommand(OpSetMaintenance, setMaintenancePayload{Host: host, Mode: mode})
}

// TaskTransitionCommand is the payload for OpTaskTransition: everything
// needed to re-derive a statemachine.WorkCommand batch's task-table
// mutation identically at commit time and at replay time. Holding the
// resolved RescheduleTaskID here (rather than generating a fresh uuid during
// replay) is what keeps replay byte-identical to the original commit.
type TaskTransitionCommand struct {
	TaskID           string          `json:"task_id"`
	Status           types.TaskStatus `json:"status"`
	Message          string          `json:"message"`
	SchedulerHost    string          `json:"scheduler_host"`
	Timestamp        time.Time       `json:"timestamp"`
	FailureCount     int             `json:"failure_count"`
	Delete           bool            `json:"delete"`
	RescheduleTaskID string          `json:"reschedule_task_id,omitempty"`

	// UpdateState is set when the transition that produced this command
	// included a CommandUpdateState work command — the only case that
	// rewrites the task's status/assignment and appends a TaskEvent. A
	// zombie-kill transition (terminal task re-reporting as alive) fires
	// other commands without this one and leaves the stored task exactly as
	// it was. A no-agent-assigned kill also comes without it, but sets
	// Delete, so the task record is removed.
	UpdateState bool `json:"update_state,omitempty"`

	// HasAssignment is set when a placement attempt is committing this
	// transition (always PENDING->ASSIGNED) together with the offer it won.
	HasAssignment bool                   `json:"has_assignment,omitempty"`
	SlaveID       string                 `json:"slave_id,omitempty"`
	SlaveHost     string                 `json:"slave_host,omitempty"`
	Ports         []types.PortAssignment `json:"ports,omitempty"`
}

// NewTaskTransitionCommand builds the log record for one task lifecycle
// transition. Grounded on statemachine.WorkCommand: it is applied through
// ApplyTaskTransition, the same function used during log replay.
func NewTaskTransitionCommand(p TaskTransitionCommand) Command {
	return mustCommand(OpTaskTransition, p)
}

// ApplyTaskTransition applies one resolved task transition to stores. It is
// exported so the single mutation it performs can be passed to storage.Write
// as both the command and the write function, guaranteeing they describe the
// same mutation by construction rather than by convention.
func ApplyTaskTransition(stores MutableStoreProvider, p TaskTransitionCommand) error {
	task, ok, err := stores.Tasks().GetTask(p.TaskID)
	if err != nil {
		return err
	}
	if !ok {
		// the task was already removed by a prior transition in the same
		// batch, or concurrently deleted; nothing to persist.
		return nil
	}

	if p.UpdateState {
		task.Status = p.Status
		task.FailureCount = p.FailureCount
		if p.HasAssignment {
			task.SlaveID = p.SlaveID
			task.SlaveHost = p.SlaveHost
			task.Ports = p.Ports
		}
		task.Events = append(task.Events, types.TaskEvent{
			Timestamp:     p.Timestamp,
			Status:        p.Status,
			Message:       p.Message,
			SchedulerHost: p.SchedulerHost,
		})
	}

	var reschedule *types.ScheduledTask
	if p.RescheduleTaskID != "" {
		next := *task
		next.TaskID = p.RescheduleTaskID
		next.AncestorID = p.TaskID
		next.Status = types.StatusPending
		next.FailureCount = p.FailureCount
		next.Ports = nil
		next.SlaveID = ""
		next.SlaveHost = ""
		next.Events = []types.TaskEvent{{
			Timestamp:     p.Timestamp,
			Status:        types.StatusPending,
			Message:       "rescheduled from " + p.TaskID,
			SchedulerHost: p.SchedulerHost,
		}}
		reschedule = &next
	}

	if p.Delete {
		if err := stores.Tasks().DeleteTask(p.TaskID); err != nil {
			return err
		}
	} else if err := stores.Tasks().PutTask(task); err != nil {
		return err
	}

	if reschedule != nil {
		if err := stores.Tasks().PutTask(reschedule); err != nil {
			return err
		}
	}
	return nil
}

type deleteTaskPayload struct {
	TaskID string `json:"task_id"`
}

type deleteJobPayload struct {
	Key types.JobKey `json:"key"`
}

type deleteLockPayload struct {
	Key types.LockKey `json:"key"`
}

type setMaintenancePayload struct {
	Host string              `json:"host"`
	Mode types.MaintenanceMode `json:"mode"`
}

// apply replays a single Command against a write transaction's stores. It is
// used both by normal commit-time application (so the in-memory mutation and
// the log record are always produced by the same code path) and by startup
// replay.
func apply(stores MutableStoreProvider, cmd Command) error {
	switch cmd.Op {
	case OpPutTask:
		var task types.ScheduledTask
		if err := json.Unmarshal(cmd.Data, &task); err != nil {
			return err
		}
		return stores.Tasks().PutTask(&task)
	case OpDeleteTask:
		var p deleteTaskPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return stores.Tasks().DeleteTask(p.TaskID)
	case OpPutJob:
		var job types.JobConfiguration
		if err := json.Unmarshal(cmd.Data, &job); err != nil {
			return err
		}
		return stores.Jobs().PutJob(&job)
	case OpDeleteJob:
		var p deleteJobPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return stores.Jobs().DeleteJob(p.Key)
	case OpPutQuota:
		var q types.Quota
		if err := json.Unmarshal(cmd.Data, &q); err != nil {
			return err
		}
		return stores.Quotas().PutQuota(&q)
	case OpPutLock:
		var l types.Lock
		if err := json.Unmarshal(cmd.Data, &l); err != nil {
			return err
		}
		return stores.Locks().PutLock(&l)
	case OpDeleteLock:
		var p deleteLockPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return stores.Locks().DeleteLock(p.Key)
	case OpPutAttributes:
		var a types.HostAttributes
		if err := json.Unmarshal(cmd.Data, &a); err != nil {
			return err
		}
		return stores.Attributes().PutHostAttributes(&a)
	case OpSetMaintenance:
		var p setMaintenancePayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return stores.Scheduler().SetMaintenanceMode(p.Host, p.Mode)
	case OpTaskTransition:
		var p TaskTransitionCommand
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return ApplyTaskTransition(stores, p)
	default:
		return fmt.Errorf("storage: unknown command op %q", cmd.Op)
	}
}
