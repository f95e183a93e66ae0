package recovery

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// TaskQuery filters a staged recovery snapshot's tasks for queryRecovery. A
// zero-value TaskQuery matches every task.
type TaskQuery struct {
	Job      *types.JobKey
	Statuses []types.TaskStatus
}

func (q TaskQuery) matches(t *types.ScheduledTask) bool {
	if q.Job != nil {
		key := types.JobKey{Role: t.Role, Environment: t.Environment, JobName: t.JobName}
		if key != *q.Job {
			return false
		}
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, s := range q.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Controller drives the backup/stage/commit recovery workflow (§6's
// performBackup / listBackups / stageRecovery / queryRecovery /
// deleteRecoveryTasks / commitRecovery / unloadRecovery RPCs).
//
// At most one backup may be staged at a time: staging a second backup, or
// staging the same one twice, replaces whatever was staged before.
type Controller struct {
	facade *storage.Facade
	logger zerolog.Logger

	mu     sync.Mutex
	staged *storage.Snapshot
	stagedID string
}

// New builds a Controller over facade.
func New(facade *storage.Facade) *Controller {
	return &Controller{facade: facade, logger: log.WithComponent("recovery")}
}

// PerformBackup takes an immediate backup and returns its id.
func (c *Controller) PerformBackup() (string, error) {
	id, err := c.facade.Backup()
	if err != nil {
		return "", fmt.Errorf("recovery: backup: %w", err)
	}
	c.logger.Info().Str("backup_id", id).Msg("performed backup")
	return id, nil
}

// ListBackups returns every retained backup generation.
func (c *Controller) ListBackups() ([]storage.BackupInfo, error) {
	return c.facade.ListBackups()
}

// StageRecovery loads backupID into the staging slot, replacing whatever was
// staged before. Nothing in the live facade is touched.
func (c *Controller) StageRecovery(backupID string) error {
	snap, err := c.facade.LoadBackup(backupID)
	if err != nil {
		return fmt.Errorf("recovery: load backup %s: %w", backupID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = snap
	c.stagedID = backupID
	c.logger.Info().Str("backup_id", backupID).Int("tasks", len(snap.Tasks)).Msg("staged recovery")
	return nil
}

// QueryRecovery returns every staged task matching query, without touching
// the live facade. It returns an error if nothing is staged.
func (c *Controller) QueryRecovery(query TaskQuery) ([]*types.ScheduledTask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staged == nil {
		return nil, fmt.Errorf("recovery: no backup staged")
	}

	var out []*types.ScheduledTask
	for _, t := range c.staged.Tasks {
		if query.matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// DeleteRecoveryTasks removes the named tasks from the staged snapshot, in
// place, before it is committed. It returns an error if nothing is staged.
func (c *Controller) DeleteRecoveryTasks(taskIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staged == nil {
		return fmt.Errorf("recovery: no backup staged")
	}

	remove := make(map[string]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		remove[id] = struct{}{}
	}

	kept := c.staged.Tasks[:0]
	for _, t := range c.staged.Tasks {
		if _, drop := remove[t.TaskID]; !drop {
			kept = append(kept, t)
		}
	}
	c.staged.Tasks = kept
	return nil
}

// CommitRecovery replaces every live store with the staged snapshot's
// contents, then writes a fresh backup so the restored state becomes the new
// durable baseline rather than being reverted by the next periodic snapshot
// replaying over it. The staging slot is cleared on success.
func (c *Controller) CommitRecovery() error {
	c.mu.Lock()
	staged := c.staged
	stagedID := c.stagedID
	c.mu.Unlock()

	if staged == nil {
		return fmt.Errorf("recovery: no backup staged")
	}

	if err := c.facade.RestoreFrom(staged); err != nil {
		return fmt.Errorf("recovery: restore from backup %s: %w", stagedID, err)
	}
	if err := c.facade.Snapshot(); err != nil {
		return fmt.Errorf("recovery: snapshot after restore: %w", err)
	}

	c.mu.Lock()
	c.staged = nil
	c.stagedID = ""
	c.mu.Unlock()

	c.logger.Info().Str("backup_id", stagedID).Int("tasks", len(staged.Tasks)).Msg("committed recovery")
	return nil
}

// UnloadRecovery discards the staged snapshot without committing it. Safe to
// call even if nothing is staged.
func (c *Controller) UnloadRecovery() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = nil
	c.stagedID = ""
}
