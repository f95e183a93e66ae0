package types

import "time"

// TaskConfig is the immutable, instance-count-agnostic description of a
// workload. Two TaskConfigs are equivalent-for-scheduling iff every
// scheduling-relevant field below is equal; that equivalence class is a
// GroupKey (see GroupKeyOf in pkg/scheduler).
type TaskConfig struct {
	Role        string
	Environment string
	JobName     string

	CPU       float64
	RAMMB     int64
	DiskMB    int64
	PortNames []string

	Command         string
	IsService       bool
	MaxTaskFailures int // -1 = unlimited

	Container   ContainerSpec
	Constraints []Constraint

	// Tier resolves the preemptor's priority-comparison question: production
	// tasks preempt preemptible tasks preempt revocable tasks; within a tier,
	// Priority breaks ties.
	Tier     Tier
	Priority int
}

// Tier is the coarse preemption class of a task.
type Tier string

const (
	TierProduction  Tier = "production"
	TierPreemptible Tier = "preemptible"
	TierRevocable   Tier = "revocable"
)

// ContainerSpec is opaque container/runtime metadata carried through
// scheduling but not interpreted by the core; the executor/agent protocol
// that actually launches it is an external collaborator.
type ContainerSpec struct {
	Image string
	Env   map[string]string
}

// ConstraintKind selects the predicate a Constraint applies to a
// HostAttribute value set.
type ConstraintKind string

const (
	ConstraintEquals ConstraintKind = "equals"
	ConstraintLimit  ConstraintKind = "limit"
	ConstraintValues ConstraintKind = "value_set"
)

// Constraint restricts placement to hosts whose attribute named Name
// satisfies Kind against Values.
type Constraint struct {
	Name   string
	Kind   ConstraintKind
	Values []string
	// Limit is used only when Kind == ConstraintLimit: the maximum number of
	// tasks from the same job allowed per distinct attribute value.
	Limit int
}

// PortAssignment is a concrete port number bound to a named port request.
type PortAssignment struct {
	Name string
	Port int32
}

// AssignedTask is a TaskConfig instantiated as one scheduled attempt.
type AssignedTask struct {
	TaskConfig

	TaskID     string
	InstanceID int

	SlaveID   string
	SlaveHost string
	Ports     []PortAssignment
}

// TaskStatus is a state in the per-task state machine graph.
type TaskStatus string

const (
	StatusInit       TaskStatus = "INIT"
	StatusPending    TaskStatus = "PENDING"
	StatusThrottled  TaskStatus = "THROTTLED"
	StatusAssigned   TaskStatus = "ASSIGNED"
	StatusStarting   TaskStatus = "STARTING"
	StatusRunning    TaskStatus = "RUNNING"
	StatusPreempting TaskStatus = "PREEMPTING"
	StatusRestarting TaskStatus = "RESTARTING"
	StatusKilling    TaskStatus = "KILLING"
	StatusFinished   TaskStatus = "FINISHED"
	StatusFailed     TaskStatus = "FAILED"
	StatusKilled     TaskStatus = "KILLED"
	StatusLost       TaskStatus = "LOST"
	StatusUnknown    TaskStatus = "UNKNOWN"
)

// activeStatuses and terminalStatuses back IsActive/IsTerminal below. INIT
// and UNKNOWN are in neither set, so both report false for them.
var activeStatuses = map[TaskStatus]bool{
	StatusPending:    true,
	StatusThrottled:  true,
	StatusAssigned:   true,
	StatusStarting:   true,
	StatusRunning:    true,
	StatusPreempting: true,
	StatusRestarting: true,
	StatusKilling:    true,
}

var terminalStatuses = map[TaskStatus]bool{
	StatusFinished: true,
	StatusFailed:   true,
	StatusKilled:   true,
	StatusLost:     true,
}

// IsActive reports whether s is one of the active states.
func (s TaskStatus) IsActive() bool { return activeStatuses[s] }

// IsTerminal reports whether s is one of the terminal states.
func (s TaskStatus) IsTerminal() bool { return terminalStatuses[s] }

// TaskEvent is one append-only audit entry in a ScheduledTask's history.
// The TaskEvent list is monotone non-decreasing in Timestamp, and the last
// entry's Status always equals the owning ScheduledTask's Status.
type TaskEvent struct {
	Timestamp     time.Time
	Status        TaskStatus
	Message       string
	SchedulerHost string
}

// ScheduledTask is an AssignedTask plus its lifecycle state.
type ScheduledTask struct {
	AssignedTask

	Status       TaskStatus
	FailureCount int
	// AncestorID is the taskId this task was rescheduled from, or "" if this
	// task was not produced by a reschedule.
	AncestorID string
	Events     []TaskEvent
}

// JobKey identifies a job's coordinates, independent of any particular
// instance or task.
type JobKey struct {
	Role        string
	Environment string
	JobName     string
}

// GroupKey is the equivalence class of TaskConfigs that schedule
// identically. It is produced by hashing the scheduling-relevant subset of a
// TaskConfig; see pkg/scheduler.GroupKeyOf.
type GroupKey string

// JobConfiguration is the stored template for cron/templated jobs.
// Instance-job configurations are reconstructed from their live tasks and
// are never persisted as a JobConfiguration.
type JobConfiguration struct {
	Key           JobKey
	Owner         string
	Template      TaskConfig
	InstanceCount int
	CronSchedule  string // empty = not a cron job
}

// LockKey names a lock. Today a LockKey is always a job key, but it is kept
// distinct from JobKey so the lock manager does not hard-code that
// assumption.
type LockKey struct {
	Job JobKey
}

// Lock is an advisory exclusion token scoped to a LockKey.
type Lock struct {
	Key         LockKey
	Token       string
	Identity    string
	TimestampMs int64
}

// Quota is a per-role resource aggregate compared against the sum of
// resources held by that role's production active tasks.
type Quota struct {
	Role   string
	CPU    float64
	RAMMB  int64
	DiskMB int64
}

// HostAttribute is one named, multi-valued attribute of a host, used for
// constraint matching.
type HostAttribute struct {
	Name   string
	Values []string
}

// HostAttributes is the full attribute set advertised for one host.
type HostAttributes struct {
	Host       string
	Attributes []HostAttribute
}

// MaintenanceMode is a host's position in the drain lifecycle.
type MaintenanceMode string

const (
	MaintenanceNone      MaintenanceMode = "NONE"
	MaintenanceScheduled MaintenanceMode = "SCHEDULED"
	MaintenanceDraining  MaintenanceMode = "DRAINING"
	MaintenanceDrained   MaintenanceMode = "DRAINED"
)

// ResourceOffer is a time-bounded advertisement of available host resources
// from the cluster resource manager.
type ResourceOffer struct {
	OfferID   string
	SlaveID   string
	SlaveHost string
	CPU       float64
	RAMMB     int64
	DiskMB    int64
	Ports     []PortRange
	ExpiresAt time.Time
}

// PortRange is an inclusive range of ports available on an offer.
type PortRange struct {
	Begin int32
	End   int32
}
