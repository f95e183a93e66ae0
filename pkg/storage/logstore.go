package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"

	"github.com/ballast-sched/ballast/pkg/types"
)

// Snapshot is the full serialized image of every in-memory store, written
// as a single snapshot record that supersedes all prior log records.
type Snapshot struct {
	Tasks       []*types.ScheduledTask           `json:"tasks"`
	Jobs        []*types.JobConfiguration        `json:"jobs"`
	Quotas      []*types.Quota                   `json:"quotas"`
	Locks       []*types.Lock                    `json:"locks"`
	Attributes  []*types.HostAttributes          `json:"attributes"`
	Maintenance map[string]types.MaintenanceMode `json:"maintenance"`
}

// DurableLog is the Log + Snapshot Store: it appends one opaque Command
// record per committed write and periodically replaces the whole log with a
// single snapshot record.
//
// It reuses hashicorp/raft's LogStore and SnapshotStore storage engines
// without running raft's consensus module (leader election, AppendEntries
// replication) — consensus itself, and the replication transport, are out of
// scope here; only the durable on-disk representation is exercised.
type DurableLog struct {
	logs      raft.LogStore
	snapshots raft.SnapshotStore
	nextIndex uint64
}

// OpenDurableLog opens (creating if absent) the log+snapshot store rooted at
// dataDir.
func OpenDurableLog(dataDir string) (*DurableLog, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	logs, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "log.bolt"))
	if err != nil {
		return nil, fmt.Errorf("storage: open log store: %w", err)
	}

	snaps, err := raft.NewFileSnapshotStore(dataDir, 3, io.Discard)
	if err != nil {
		return nil, fmt.Errorf("storage: open snapshot store: %w", err)
	}

	lastIdx, err := logs.LastIndex()
	if err != nil {
		return nil, fmt.Errorf("storage: read last log index: %w", err)
	}

	return &DurableLog{logs: logs, snapshots: snaps, nextIndex: lastIdx + 1}, nil
}

// Append writes one Command as the next log record.
func (d *DurableLog) Append(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("storage: encode log record: %w", err)
	}
	entry := &raft.Log{
		Index: d.nextIndex,
		Data:  data,
		Type:  raft.LogCommand,
	}
	if err := d.logs.StoreLog(entry); err != nil {
		return fmt.Errorf("storage: append log record: %w", err)
	}
	d.nextIndex++
	return nil
}

// Replay calls apply, in order, for every Command recorded since the last
// snapshot.
func (d *DurableLog) Replay(apply func(Command) error) error {
	first, err := d.logs.FirstIndex()
	if err != nil {
		return fmt.Errorf("storage: read first log index: %w", err)
	}
	last, err := d.logs.LastIndex()
	if err != nil {
		return fmt.Errorf("storage: read last log index: %w", err)
	}
	if first == 0 {
		first = 1
	}
	for idx := first; idx <= last; idx++ {
		var entry raft.Log
		if err := d.logs.GetLog(idx, &entry); err != nil {
			return fmt.Errorf("storage: read log record %d: %w", idx, err)
		}
		if entry.Type != raft.LogCommand {
			continue
		}
		var cmd Command
		if err := json.Unmarshal(entry.Data, &cmd); err != nil {
			return fmt.Errorf("storage: decode log record %d: %w", idx, err)
		}
		if err := apply(cmd); err != nil {
			return fmt.Errorf("storage: replay log record %d: %w", idx, err)
		}
	}
	return nil
}

// WriteSnapshot serializes snap as a new snapshot record and truncates every
// log record preceding it. It returns the id the snapshot store assigned the
// record, which doubles as a backup identifier for the recovery workflow.
func (d *DurableLog) WriteSnapshot(snap Snapshot) (string, error) {
	sink, err := d.snapshots.Create(raft.SnapshotVersionMax, d.nextIndex-1, 0, raft.Configuration{}, 0, nil)
	if err != nil {
		return "", fmt.Errorf("storage: create snapshot: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		sink.Cancel()
		return "", fmt.Errorf("storage: encode snapshot: %w", err)
	}
	if _, err := sink.Write(data); err != nil {
		sink.Cancel()
		return "", fmt.Errorf("storage: write snapshot: %w", err)
	}
	if err := sink.Close(); err != nil {
		return "", fmt.Errorf("storage: close snapshot: %w", err)
	}
	id := sink.ID()

	first, err := d.logs.FirstIndex()
	if err != nil {
		return "", fmt.Errorf("storage: read first log index: %w", err)
	}
	if first == 0 {
		first = 1
	}
	if d.nextIndex > first {
		if err := d.logs.DeleteRange(first, d.nextIndex-1); err != nil {
			return "", fmt.Errorf("storage: truncate log after snapshot: %w", err)
		}
	}
	return id, nil
}

// BackupInfo describes one retained snapshot record available as a backup.
type BackupInfo struct {
	ID    string
	Index uint64
	Size  int64
}

// ListSnapshots returns every retained snapshot's metadata, most recent
// first (the order hashicorp/raft's SnapshotStore.List already guarantees).
func (d *DurableLog) ListSnapshots() ([]BackupInfo, error) {
	metas, err := d.snapshots.List()
	if err != nil {
		return nil, fmt.Errorf("storage: list snapshots: %w", err)
	}
	out := make([]BackupInfo, len(metas))
	for i, m := range metas {
		out[i] = BackupInfo{ID: m.ID, Index: m.Index, Size: m.Size}
	}
	return out, nil
}

// OpenSnapshot decodes the snapshot record stored under id, regardless of
// whether it is the most recent one.
func (d *DurableLog) OpenSnapshot(id string) (*Snapshot, error) {
	_, rc, err := d.snapshots.Open(id)
	if err != nil {
		return nil, fmt.Errorf("storage: open snapshot %s: %w", id, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("storage: read snapshot %s: %w", id, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("storage: decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// LatestSnapshot returns the most recent snapshot, if one exists.
func (d *DurableLog) LatestSnapshot() (*Snapshot, bool, error) {
	metas, err := d.snapshots.List()
	if err != nil {
		return nil, false, fmt.Errorf("storage: list snapshots: %w", err)
	}
	if len(metas) == 0 {
		return nil, false, nil
	}

	_, rc, err := d.snapshots.Open(metas[0].ID)
	if err != nil {
		return nil, false, fmt.Errorf("storage: open snapshot %s: %w", metas[0].ID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("storage: read snapshot %s: %w", metas[0].ID, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("storage: decode snapshot %s: %w", metas[0].ID, err)
	}
	return &snap, true, nil
}
