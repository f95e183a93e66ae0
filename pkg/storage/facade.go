// Package storage implements the transactional facade: the single entry
// point through which every mutation to task, job, lock, quota, and
// scheduler state flows, layered on top of a durable local log with periodic
// snapshot compaction.
package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/clock"
	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/metrics"
	"github.com/ballast-sched/ballast/pkg/types"
)

// Notifier is told about every committed write so the scheduling loop can
// wake the affected group. Facade depends only on this narrow interface, not
// on the event bus itself, to keep the dependency graph acyclic.
type Notifier interface {
	NotifyCommitted(cmd Command)
}

type noopNotifier struct{}

func (noopNotifier) NotifyCommitted(Command) {}

// Facade is the transactional storage facade (§4.6): Read is
// snapshot-consistent and may run concurrently with other reads; Write
// serializes with all other writes behind a single global lock and either
// commits every mutation plus one log record, or commits nothing.
type Facade struct {
	writeMu sync.Mutex
	db      *memdb.MemDB
	durable *DurableLog
	notify  Notifier
	logger  zerolog.Logger

	snapshotInterval time.Duration
	clock            clock.Clock

	readyOnce sync.Once
	ready     chan struct{}
}

// Option configures a Facade at construction time.
type Option func(*Facade)

// WithNotifier wires a Notifier that is told about every committed write.
func WithNotifier(n Notifier) Option {
	return func(f *Facade) { f.notify = n }
}

// WithSnapshotInterval overrides the default 5-minute snapshot cadence.
func WithSnapshotInterval(d time.Duration) Option {
	return func(f *Facade) { f.snapshotInterval = d }
}

// WithClock injects a clock.Clock, overriding the real wall clock; tests use
// this to drive the snapshot ticker deterministically.
func WithClock(c clock.Clock) Option {
	return func(f *Facade) { f.clock = c }
}

// Open opens the facade's in-memory stores and durable log, then replays the
// latest snapshot plus any subsequent records. The scheduling loop must not
// be armed until Open returns: recovery precedes the storage-ready signal.
func Open(dataDir string, opts ...Option) (*Facade, error) {
	db, err := memdb.NewMemDB(newSchema())
	if err != nil {
		return nil, fmt.Errorf("storage: init in-memory store: %w", err)
	}

	durable, err := OpenDurableLog(dataDir)
	if err != nil {
		return nil, err
	}

	f := &Facade{
		db:               db,
		durable:          durable,
		notify:           noopNotifier{},
		logger:           log.WithComponent("storage"),
		snapshotInterval: 5 * time.Minute,
		clock:            clock.New(),
		ready:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	if err := f.recover(); err != nil {
		return nil, fmt.Errorf("storage: recovery failed: %w", err)
	}
	f.readyOnce.Do(func() { close(f.ready) })

	return f, nil
}

// Ready is closed once startup recovery has completed and reads/writes
// reflect the fully-replayed state — the storage-ready signal that arms the
// scheduling loop.
func (f *Facade) Ready() <-chan struct{} { return f.ready }

func (f *Facade) recover() error {
	snap, ok, err := f.durable.LatestSnapshot()
	if err != nil {
		return err
	}
	if ok {
		if err := f.restoreSnapshot(snap); err != nil {
			return err
		}
		f.logger.Info().
			Int("tasks", len(snap.Tasks)).
			Int("jobs", len(snap.Jobs)).
			Msg("restored latest snapshot")
	}

	replayed := 0
	err = f.durable.Replay(func(cmd Command) error {
		replayed++
		txn := f.db.Txn(true)
		if err := apply(writeStores{txn}, cmd); err != nil {
			txn.Abort()
			return err
		}
		txn.Commit()
		return nil
	})
	if err != nil {
		return err
	}
	f.logger.Info().Int("records_replayed", replayed).Msg("replayed log records since last snapshot")
	return nil
}

func (f *Facade) restoreSnapshot(snap *Snapshot) error {
	txn := f.db.Txn(true)
	ws := writeStores{txn}
	for _, t := range snap.Tasks {
		if err := ws.Tasks().PutTask(t); err != nil {
			txn.Abort()
			return err
		}
	}
	for _, j := range snap.Jobs {
		if err := ws.Jobs().PutJob(j); err != nil {
			txn.Abort()
			return err
		}
	}
	for _, q := range snap.Quotas {
		if err := ws.Quotas().PutQuota(q); err != nil {
			txn.Abort()
			return err
		}
	}
	for _, l := range snap.Locks {
		if err := ws.Locks().PutLock(l); err != nil {
			txn.Abort()
			return err
		}
	}
	for _, a := range snap.Attributes {
		if err := ws.Attributes().PutHostAttributes(a); err != nil {
			txn.Abort()
			return err
		}
	}
	for host, mode := range snap.Maintenance {
		if err := ws.Scheduler().SetMaintenanceMode(host, mode); err != nil {
			txn.Abort()
			return err
		}
	}
	txn.Commit()
	return nil
}

// Read runs fn against a snapshot-consistent read-only view. It never takes
// the write lock, so it may run concurrently with other reads and with
// writes in flight (observing the pre-write state until that write commits).
func Read[T any](f *Facade, fn func(StoreProvider) (T, error)) (T, error) {
	txn := f.db.Txn(false)
	defer txn.Abort()
	return fn(readStores{txn})
}

// Write runs fn against a mutable view, serialized with every other writer.
// If fn returns an error the memdb transaction is aborted and no log record
// is appended. Otherwise the transaction commits and cmd is appended to the
// durable log as one record — fn and cmd must describe the same mutation,
// since replay re-derives state purely from logged commands.
func Write[T any](f *Facade, cmd Command, fn func(MutableStoreProvider) (T, error)) (T, error) {
	var zero T

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StorageWriteDuration)

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	txn := f.db.Txn(true)
	result, err := fn(writeStores{txn})
	if err != nil {
		txn.Abort()
		return zero, err
	}
	txn.Commit()

	if err := f.durable.Append(cmd); err != nil {
		f.logger.Error().Err(err).Str("op", string(cmd.Op)).Msg("log append failed after commit")
		return zero, fmt.Errorf("storage: %w", err)
	}

	f.notify.NotifyCommitted(cmd)
	return result, nil
}

// Snapshot forces an immediate full snapshot and log truncation, either on
// the configured interval or on operator request (the RPC `snapshot()`).
func (f *Facade) Snapshot() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	snap, err := f.buildSnapshot()
	if err != nil {
		return err
	}
	if _, err := f.durable.WriteSnapshot(*snap); err != nil {
		return err
	}
	metrics.SnapshotsTotal.Inc()
	f.logger.Info().Int("tasks", len(snap.Tasks)).Msg("wrote snapshot and truncated log")
	return nil
}

// buildSnapshot reads the full current state into a Snapshot. Callers must
// hold writeMu, since it shares the read-only transaction path with Read but
// is used from contexts that must observe a point-in-time view consistent
// with the durable log's truncation point.
func (f *Facade) buildSnapshot() (*Snapshot, error) {
	txn := f.db.Txn(false)
	defer txn.Abort()
	rs := readStores{txn}

	tasks, err := rs.Tasks().ListTasks()
	if err != nil {
		return nil, err
	}
	jobs, err := rs.Jobs().ListJobs("")
	if err != nil {
		return nil, err
	}
	attrs, err := rs.Attributes().ListHostAttributes()
	if err != nil {
		return nil, err
	}
	maint, err := rs.Scheduler().ListMaintenance()
	if err != nil {
		return nil, err
	}

	quotaIt, err := txn.Get(tableQuotas, "id")
	if err != nil {
		return nil, err
	}
	var quotas []*types.Quota
	for raw := quotaIt.Next(); raw != nil; raw = quotaIt.Next() {
		q := *raw.(*quotaRecord).Quota
		quotas = append(quotas, &q)
	}

	lockIt, err := txn.Get(tableLocks, "id")
	if err != nil {
		return nil, err
	}
	var locks []*types.Lock
	for raw := lockIt.Next(); raw != nil; raw = lockIt.Next() {
		l := *raw.(*lockRecord).Lock
		locks = append(locks, &l)
	}

	return &Snapshot{
		Tasks:       tasks,
		Jobs:        jobs,
		Quotas:      quotas,
		Locks:       locks,
		Attributes:  attrs,
		Maintenance: maint,
	}, nil
}

// Backup takes an immediate snapshot, exactly like Snapshot, but returns the
// id assigned to the resulting record so it can later be targeted by
// ListBackups/LoadBackup — the basis for the `performBackup`/`stageRecovery`
// recovery workflow, distinct from the periodic compaction snapshot in that
// callers keep referring to this specific generation by id.
func (f *Facade) Backup() (string, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	snap, err := f.buildSnapshot()
	if err != nil {
		return "", err
	}
	id, err := f.durable.WriteSnapshot(*snap)
	if err != nil {
		return "", err
	}
	metrics.SnapshotsTotal.Inc()
	f.logger.Info().Str("backup_id", id).Int("tasks", len(snap.Tasks)).Msg("wrote backup")
	return id, nil
}

// ListBackups returns every retained snapshot generation available to
// restore from.
func (f *Facade) ListBackups() ([]BackupInfo, error) {
	return f.durable.ListSnapshots()
}

// LoadBackup decodes the snapshot record stored under id without mutating
// any live state — used to stage a recovery before it is committed.
func (f *Facade) LoadBackup(id string) (*Snapshot, error) {
	return f.durable.OpenSnapshot(id)
}

// RestoreFrom replaces every live in-memory store with snap's contents. It
// takes the write lock for the duration, the same as any other mutation, but
// does not append a log record of its own: the restored state itself becomes
// the new durable baseline the next time Snapshot or Backup runs.
func (f *Facade) RestoreFrom(snap *Snapshot) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	txn := f.db.Txn(true)
	if err := deleteAll(txn); err != nil {
		txn.Abort()
		return err
	}
	ws := writeStores{txn}
	for _, t := range snap.Tasks {
		if err := ws.Tasks().PutTask(t); err != nil {
			txn.Abort()
			return err
		}
	}
	for _, j := range snap.Jobs {
		if err := ws.Jobs().PutJob(j); err != nil {
			txn.Abort()
			return err
		}
	}
	for _, q := range snap.Quotas {
		if err := ws.Quotas().PutQuota(q); err != nil {
			txn.Abort()
			return err
		}
	}
	for _, l := range snap.Locks {
		if err := ws.Locks().PutLock(l); err != nil {
			txn.Abort()
			return err
		}
	}
	for _, a := range snap.Attributes {
		if err := ws.Attributes().PutHostAttributes(a); err != nil {
			txn.Abort()
			return err
		}
	}
	for host, mode := range snap.Maintenance {
		if err := ws.Scheduler().SetMaintenanceMode(host, mode); err != nil {
			txn.Abort()
			return err
		}
	}
	txn.Commit()
	f.logger.Info().Int("tasks", len(snap.Tasks)).Msg("restored from backup")
	return nil
}

func deleteAll(txn *memdb.Txn) error {
	for _, table := range []string{tableTasks, tableJobs, tableQuotas, tableLocks, tableAttributes, tableMaintenance} {
		if _, err := txn.DeleteAll(table, "id"); err != nil {
			return err
		}
	}
	return nil
}

// RunSnapshotLoop periodically calls Snapshot at the configured interval
// until stopCh closes. Run it as the daemon's background snapshot worker.
func (f *Facade) RunSnapshotLoop(stopCh <-chan struct{}) {
	ticker := f.clock.NewTicker(f.snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			if err := f.Snapshot(); err != nil {
				f.logger.Error().Err(err).Msg("periodic snapshot failed")
			}
		case <-stopCh:
			return
		}
	}
}
