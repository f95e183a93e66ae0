/*
Package storage implements components A, B, and C of the scheduler core: the
durable Log + Snapshot Store, the typed in-memory Stores, and the
Transactional Facade that sits in front of both.

# Two primitives

The facade exposes exactly two operations, matching the source design:

  - Read(f, fn) runs fn against a StoreProvider — a snapshot-consistent,
    read-only view. Reads never take the write lock and may run freely in
    parallel with each other.
  - Write(f, cmd, fn) runs fn against a MutableStoreProvider, serialized
    behind a single global write lock. fn's mutations and cmd (the same
    mutation, re-expressed as an opaque Command for the log) either both
    commit, or neither does.

Every mutating call in the rest of this module — job submission, state
transitions, lock acquisition, quota updates, host attribute refresh,
maintenance mode changes — goes through Write exactly once per logical
mutation, which is what gives the facade its atomicity guarantee: a task's
new status, its appended event, and any derived reschedule or delete land in
the same transaction and the same log record.

# In-memory stores

The stores (tables.go, schema.go) are backed by hashicorp/go-memdb: each
entity (tasks, jobs, quotas, locks, host attributes, maintenance mode) is a
memdb table with a unique primary index and whatever secondary indexes its
access patterns need — tasks are additionally indexed by job and by status,
since the scheduling loop scans "all PENDING tasks" and the group-assignment
path scans "all tasks in job J" constantly. A row read out of a Read or
Write call is always a copy (see deepCopyTask in tables.go, via
mitchellh/copystructure): callers can never mutate what's still sitting in
the table.

# Durable log

DurableLog (logstore.go) is the Log + Snapshot Store. It reuses
hashicorp/raft's LogStore and SnapshotStore storage engines — backed by
hashicorp/raft-boltdb/v2 and raft's own file snapshot store — purely as
durable storage primitives. It does not run raft's consensus module: no
leader election, no AppendEntries replication. Implementing the underlying
consensus log is explicitly out of scope; the replication transport that
would ship these records to other replicas is a separate, external
collaborator. What's left — append, replay, snapshot, truncate — is exactly
the storage contract this module needs, and it is a real durable engine, not
a stand-in for one.

# Recovery

Open() replays the latest snapshot, then every log record appended since, in
order, before returning. The Facade's Ready() channel is the storage-ready
signal: the scheduling loop must not enqueue any group before Ready() closes,
or it would race committed-but-not-yet-replayed mutations.

# Snapshotting

Facade.Snapshot() serializes every store into one Snapshot record and asks
DurableLog to truncate everything before it. RunSnapshotLoop calls it on a
timer (default five minutes); the same method backs the operator-triggered
`snapshot()` RPC.
*/
package storage
