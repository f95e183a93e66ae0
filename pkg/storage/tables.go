package storage

import (
	"github.com/hashicorp/go-memdb"
	"github.com/mitchellh/copystructure"

	"github.com/ballast-sched/ballast/pkg/types"
)

// deepCopyTask returns a copy of t so callers reading out of the facade can
// never observe later in-memory mutation of the stored record.
func deepCopyTask(t *types.ScheduledTask) *types.ScheduledTask {
	if t == nil {
		return nil
	}
	copied, err := copystructure.Copy(t)
	if err != nil {
		// copystructure only fails on unsupported types; ScheduledTask is
		// plain data, so this is unreachable in practice.
		clone := *t
		return &clone
	}
	return copied.(*types.ScheduledTask)
}

type taskStore struct{ txn *memdb.Txn }

func (s taskStore) GetTask(taskID string) (*types.ScheduledTask, bool, error) {
	raw, err := s.txn.First(tableTasks, "id", taskID)
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	return deepCopyTask(raw.(*taskRecord).Task), true, nil
}

func (s taskStore) ListTasks() ([]*types.ScheduledTask, error) {
	it, err := s.txn.Get(tableTasks, "id")
	if err != nil {
		return nil, err
	}
	return collectTasks(it), nil
}

func (s taskStore) ListTasksByJob(key types.JobKey) ([]*types.ScheduledTask, error) {
	it, err := s.txn.Get(tableTasks, "job", jobKeyString(key))
	if err != nil {
		return nil, err
	}
	return collectTasks(it), nil
}

func (s taskStore) ListTasksByStatus(status types.TaskStatus) ([]*types.ScheduledTask, error) {
	it, err := s.txn.Get(tableTasks, "status", string(status))
	if err != nil {
		return nil, err
	}
	return collectTasks(it), nil
}

func collectTasks(it memdb.ResultIterator) []*types.ScheduledTask {
	var out []*types.ScheduledTask
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, deepCopyTask(raw.(*taskRecord).Task))
	}
	return out
}

func (s taskStore) PutTask(task *types.ScheduledTask) error {
	rec := &taskRecord{
		Task:   deepCopyTask(task),
		TaskID: task.TaskID,
		JobKey: jobKeyString(types.JobKey{Role: task.Role, Environment: task.Environment, JobName: task.JobName}),
		Status: string(task.Status),
	}
	return s.txn.Insert(tableTasks, rec)
}

func (s taskStore) DeleteTask(taskID string) error {
	raw, err := s.txn.First(tableTasks, "id", taskID)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	return s.txn.Delete(tableTasks, raw)
}

type jobStore struct{ txn *memdb.Txn }

func (s jobStore) GetJob(key types.JobKey) (*types.JobConfiguration, bool, error) {
	raw, err := s.txn.First(tableJobs, "id", jobKeyString(key))
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	job := *raw.(*jobRecord).Job
	return &job, true, nil
}

func (s jobStore) ListJobs(role string) ([]*types.JobConfiguration, error) {
	var it memdb.ResultIterator
	var err error
	if role == "" {
		it, err = s.txn.Get(tableJobs, "id")
	} else {
		it, err = s.txn.Get(tableJobs, "role", role)
	}
	if err != nil {
		return nil, err
	}
	var out []*types.JobConfiguration
	for raw := it.Next(); raw != nil; raw = it.Next() {
		job := *raw.(*jobRecord).Job
		out = append(out, &job)
	}
	return out, nil
}

func (s jobStore) PutJob(cfg *types.JobConfiguration) error {
	rec := &jobRecord{Job: cfg, Key: jobKeyString(cfg.Key), Role: cfg.Key.Role}
	return s.txn.Insert(tableJobs, rec)
}

func (s jobStore) DeleteJob(key types.JobKey) error {
	raw, err := s.txn.First(tableJobs, "id", jobKeyString(key))
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	return s.txn.Delete(tableJobs, raw)
}

type quotaStore struct{ txn *memdb.Txn }

func (s quotaStore) GetQuota(role string) (*types.Quota, bool, error) {
	raw, err := s.txn.First(tableQuotas, "id", role)
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	q := *raw.(*quotaRecord).Quota
	return &q, true, nil
}

func (s quotaStore) PutQuota(quota *types.Quota) error {
	return s.txn.Insert(tableQuotas, &quotaRecord{Quota: quota, Role: quota.Role})
}

type lockStore struct{ txn *memdb.Txn }

func (s lockStore) GetLock(key types.LockKey) (*types.Lock, bool, error) {
	raw, err := s.txn.First(tableLocks, "id", lockKeyString(key))
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	l := *raw.(*lockRecord).Lock
	return &l, true, nil
}

func (s lockStore) PutLock(lock *types.Lock) error {
	return s.txn.Insert(tableLocks, &lockRecord{Lock: lock, Key: lockKeyString(lock.Key)})
}

func (s lockStore) DeleteLock(key types.LockKey) error {
	raw, err := s.txn.First(tableLocks, "id", lockKeyString(key))
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	return s.txn.Delete(tableLocks, raw)
}

type attributeStore struct{ txn *memdb.Txn }

func (s attributeStore) GetHostAttributes(host string) (*types.HostAttributes, bool, error) {
	raw, err := s.txn.First(tableAttributes, "id", host)
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	a := *raw.(*attributeRecord).Attrs
	return &a, true, nil
}

func (s attributeStore) ListHostAttributes() ([]*types.HostAttributes, error) {
	it, err := s.txn.Get(tableAttributes, "id")
	if err != nil {
		return nil, err
	}
	var out []*types.HostAttributes
	for raw := it.Next(); raw != nil; raw = it.Next() {
		a := *raw.(*attributeRecord).Attrs
		out = append(out, &a)
	}
	return out, nil
}

func (s attributeStore) PutHostAttributes(attrs *types.HostAttributes) error {
	return s.txn.Insert(tableAttributes, &attributeRecord{Attrs: attrs, Host: attrs.Host})
}

type schedulerStore struct{ txn *memdb.Txn }

func (s schedulerStore) GetMaintenanceMode(host string) (types.MaintenanceMode, error) {
	raw, err := s.txn.First(tableMaintenance, "id", host)
	if err != nil {
		return "", err
	}
	if raw == nil {
		return types.MaintenanceNone, nil
	}
	return types.MaintenanceMode(raw.(*maintenanceRecord).Mode), nil
}

func (s schedulerStore) ListMaintenance() (map[string]types.MaintenanceMode, error) {
	it, err := s.txn.Get(tableMaintenance, "id")
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.MaintenanceMode)
	for raw := it.Next(); raw != nil; raw = it.Next() {
		rec := raw.(*maintenanceRecord)
		out[rec.Host] = types.MaintenanceMode(rec.Mode)
	}
	return out, nil
}

func (s schedulerStore) SetMaintenanceMode(host string, mode types.MaintenanceMode) error {
	return s.txn.Insert(tableMaintenance, &maintenanceRecord{Host: host, Mode: string(mode)})
}

// readStores backs Facade.Read: every accessor returns the read-only
// interface even though the concrete tables also implement the mutable one.
type readStores struct{ txn *memdb.Txn }

func (s readStores) Tasks() TaskReader           { return taskStore{s.txn} }
func (s readStores) Jobs() JobReader             { return jobStore{s.txn} }
func (s readStores) Quotas() QuotaReader         { return quotaStore{s.txn} }
func (s readStores) Locks() LockReader           { return lockStore{s.txn} }
func (s readStores) Attributes() AttributeReader { return attributeStore{s.txn} }
func (s readStores) Scheduler() SchedulerReader  { return schedulerStore{s.txn} }

// writeStores backs Facade.Write.
type writeStores struct{ txn *memdb.Txn }

func (s writeStores) Tasks() TaskStore           { return taskStore{s.txn} }
func (s writeStores) Jobs() JobStore             { return jobStore{s.txn} }
func (s writeStores) Quotas() QuotaStore         { return quotaStore{s.txn} }
func (s writeStores) Locks() LockStore           { return lockStore{s.txn} }
func (s writeStores) Attributes() AttributeStore { return attributeStore{s.txn} }
func (s writeStores) Scheduler() SchedulerStore  { return schedulerStore{s.txn} }
