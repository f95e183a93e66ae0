package api

import (
	"context"

	"github.com/ballast-sched/ballast/pkg/recovery"
	"github.com/ballast-sched/ballast/pkg/schederr"
)

func wrapPerformBackup(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.PerformBackup(ctx)
	}
}

// PerformBackup takes an immediate backup and returns its id.
func (s *Server) PerformBackup(ctx context.Context) (*Response, error) {
	id, err := s.recovery.PerformBackup()
	if err != nil {
		return nil, schederr.Recovery(err, "perform backup")
	}
	return ok("backup performed", id), nil
}

func wrapListBackups(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.ListBackups(ctx)
	}
}

// ListBackups returns every retained backup generation.
func (s *Server) ListBackups(ctx context.Context) (*Response, error) {
	backups, err := s.recovery.ListBackups()
	if err != nil {
		return nil, schederr.Recovery(err, "list backups")
	}
	return ok("", backups), nil
}

func wrapStageRecovery(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.StageRecovery(ctx, req.Payload.(StageRecoveryRequest))
	}
}

// StageRecovery loads a backup into the staging slot for inspection before
// commit.
func (s *Server) StageRecovery(ctx context.Context, req StageRecoveryRequest) (*Response, error) {
	if err := s.recovery.StageRecovery(req.BackupID); err != nil {
		return nil, schederr.Recovery(err, "stage backup %s", req.BackupID)
	}
	return ok("recovery staged", req.BackupID), nil
}

func wrapQueryRecovery(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.QueryRecovery(ctx, req.Payload.(RecoveryQueryRequest))
	}
}

// QueryRecovery returns every staged task matching req.
func (s *Server) QueryRecovery(ctx context.Context, req RecoveryQueryRequest) (*Response, error) {
	tasks, err := s.recovery.QueryRecovery(recovery.TaskQuery{Job: req.Job, Statuses: req.Statuses})
	if err != nil {
		return nil, schederr.Recovery(err, "query staged recovery")
	}
	return ok("", tasks), nil
}

func wrapDeleteRecoveryTasks(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.DeleteRecoveryTasks(ctx, req.Payload.(DeleteRecoveryTasksRequest))
	}
}

// DeleteRecoveryTasks removes the named tasks from the staged snapshot
// before it is committed.
func (s *Server) DeleteRecoveryTasks(ctx context.Context, req DeleteRecoveryTasksRequest) (*Response, error) {
	if err := s.recovery.DeleteRecoveryTasks(req.TaskIDs); err != nil {
		return nil, schederr.Recovery(err, "delete tasks from staged recovery")
	}
	return ok("tasks removed from staged recovery", req.TaskIDs), nil
}

func wrapCommitRecovery(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.CommitRecovery(ctx)
	}
}

// CommitRecovery replaces every live store with the staged snapshot.
func (s *Server) CommitRecovery(ctx context.Context) (*Response, error) {
	if err := s.recovery.CommitRecovery(); err != nil {
		return nil, schederr.Recovery(err, "commit recovery")
	}
	return ok("recovery committed", nil), nil
}

func wrapUnloadRecovery(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.UnloadRecovery(ctx)
	}
}

// UnloadRecovery discards the staged snapshot without committing it.
func (s *Server) UnloadRecovery(ctx context.Context) (*Response, error) {
	s.recovery.UnloadRecovery()
	return ok("staged recovery unloaded", nil), nil
}
