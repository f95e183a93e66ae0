package storage

import "github.com/ballast-sched/ballast/pkg/types"

// TaskReader is the read-only half of TaskStore.
type TaskReader interface {
	GetTask(taskID string) (*types.ScheduledTask, bool, error)
	ListTasks() ([]*types.ScheduledTask, error)
	ListTasksByJob(key types.JobKey) ([]*types.ScheduledTask, error)
	ListTasksByStatus(status types.TaskStatus) ([]*types.ScheduledTask, error)
}

// TaskStore is the mutable view of the task table, given to writers.
type TaskStore interface {
	TaskReader
	PutTask(task *types.ScheduledTask) error
	DeleteTask(taskID string) error
}

// JobReader is the read-only half of JobStore.
type JobReader interface {
	GetJob(key types.JobKey) (*types.JobConfiguration, bool, error)
	ListJobs(role string) ([]*types.JobConfiguration, error)
}

// JobStore is the mutable view of the job-configuration table.
type JobStore interface {
	JobReader
	PutJob(cfg *types.JobConfiguration) error
	DeleteJob(key types.JobKey) error
}

// QuotaReader is the read-only half of QuotaStore.
type QuotaReader interface {
	GetQuota(role string) (*types.Quota, bool, error)
}

// QuotaStore is the mutable view of the per-role quota table.
type QuotaStore interface {
	QuotaReader
	PutQuota(quota *types.Quota) error
}

// LockReader is the read-only half of LockStore.
type LockReader interface {
	GetLock(key types.LockKey) (*types.Lock, bool, error)
}

// LockStore is the mutable view of the lock table; at most one lock per key.
type LockStore interface {
	LockReader
	PutLock(lock *types.Lock) error
	DeleteLock(key types.LockKey) error
}

// AttributeReader is the read-only half of AttributeStore.
type AttributeReader interface {
	GetHostAttributes(host string) (*types.HostAttributes, bool, error)
	ListHostAttributes() ([]*types.HostAttributes, error)
}

// AttributeStore is the mutable view of the host-attribute table, populated
// by the cluster manager's offer feed.
type AttributeStore interface {
	AttributeReader
	PutHostAttributes(attrs *types.HostAttributes) error
}

// SchedulerReader is the read-only half of SchedulerStore.
type SchedulerReader interface {
	GetMaintenanceMode(host string) (types.MaintenanceMode, error)
	ListMaintenance() (map[string]types.MaintenanceMode, error)
}

// SchedulerStore is the mutable view of scheduler-wide state: today, just
// host maintenance mode.
type SchedulerStore interface {
	SchedulerReader
	SetMaintenanceMode(host string, mode types.MaintenanceMode) error
}

// StoreProvider is the view Facade.Read hands to a read function: every
// subordinate store is read-only, snapshot-consistent as of the read
// transaction's start. Read opens its own read transaction, so it does not
// see the uncommitted writes of a Write in progress.
type StoreProvider interface {
	Tasks() TaskReader
	Jobs() JobReader
	Quotas() QuotaReader
	Locks() LockReader
	Attributes() AttributeReader
	Scheduler() SchedulerReader
}

// MutableStoreProvider is the view Facade.Write hands to a write function.
type MutableStoreProvider interface {
	Tasks() TaskStore
	Jobs() JobStore
	Quotas() QuotaStore
	Locks() LockStore
	Attributes() AttributeStore
	Scheduler() SchedulerStore
}
