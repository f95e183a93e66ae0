package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ballast-sched/ballast/pkg/types"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	f, err := Open(t.TempDir())
	require.NoError(t, err)
	return f
}

func putTaskCommand(t *testing.T, task *types.ScheduledTask) Command {
	t.Helper()
	return NewPutTaskCommand(task)
}

func TestFacadeWriteThenReadSeesCommittedTask(t *testing.T) {
	f := newTestFacade(t)

	task := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{
			TaskConfig: types.TaskConfig{Role: "r", Environment: "prod", JobName: "j"},
			TaskID:     "task-1",
		},
		Status: types.StatusPending,
	}

	_, err := Write(f, putTaskCommand(t, task), func(s MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Tasks().PutTask(task)
	})
	require.NoError(t, err)

	got, err := Read(f, func(s StoreProvider) (*types.ScheduledTask, error) {
		t, _, err := s.Tasks().GetTask("task-1")
		return t, err
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, types.StatusPending, got.Status)
}

func TestFacadeWriteRollsBackOnError(t *testing.T) {
	f := newTestFacade(t)

	task := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{TaskConfig: types.TaskConfig{Role: "r"}, TaskID: "task-1"},
		Status:       types.StatusPending,
	}

	failing := Command{Op: "noop", Data: []byte("{}")}
	_, err := Write(f, failing, func(s MutableStoreProvider) (struct{}, error) {
		if err := s.Tasks().PutTask(task); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, assertErr
	})
	require.Error(t, err)

	got, err := Read(f, func(s StoreProvider) (*types.ScheduledTask, error) {
		t, _, err := s.Tasks().GetTask("task-1")
		return t, err
	})
	require.NoError(t, err)
	require.Nil(t, got, "rolled-back write must not be visible")
}

func TestFacadeRecoveryReplaysAfterSnapshot(t *testing.T) {
	dir := t.TempDir()

	f, err := Open(dir)
	require.NoError(t, err)

	task1 := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{TaskConfig: types.TaskConfig{Role: "r"}, TaskID: "task-1"},
		Status:       types.StatusPending,
	}
	_, err = Write(f, putTaskCommand(t, task1), func(s MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Tasks().PutTask(task1)
	})
	require.NoError(t, err)
	require.NoError(t, f.Snapshot())

	task2 := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{TaskConfig: types.TaskConfig{Role: "r"}, TaskID: "task-2"},
		Status:       types.StatusPending,
	}
	_, err = Write(f, putTaskCommand(t, task2), func(s MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Tasks().PutTask(task2)
	})
	require.NoError(t, err)

	restarted, err := Open(dir)
	require.NoError(t, err)

	tasks, err := Read(restarted, func(s StoreProvider) ([]*types.ScheduledTask, error) {
		return s.Tasks().ListTasks()
	})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
}

func TestFacadeBackupListAndLoad(t *testing.T) {
	f := newTestFacade(t)

	task := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{TaskConfig: types.TaskConfig{Role: "r"}, TaskID: "task-1"},
		Status:       types.StatusRunning,
	}
	_, err := Write(f, putTaskCommand(t, task), func(s MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Tasks().PutTask(task)
	})
	require.NoError(t, err)

	id, err := f.Backup()
	require.NoError(t, err)
	require.NotEmpty(t, id)

	backups, err := f.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	require.Equal(t, id, backups[0].ID)

	snap, err := f.LoadBackup(id)
	require.NoError(t, err)
	require.Len(t, snap.Tasks, 1)
	require.Equal(t, "task-1", snap.Tasks[0].TaskID)
}

func TestFacadeRestoreFromReplacesLiveState(t *testing.T) {
	f := newTestFacade(t)

	original := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{TaskConfig: types.TaskConfig{Role: "r"}, TaskID: "task-1"},
		Status:       types.StatusRunning,
	}
	_, err := Write(f, putTaskCommand(t, original), func(s MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Tasks().PutTask(original)
	})
	require.NoError(t, err)

	id, err := f.Backup()
	require.NoError(t, err)

	extra := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{TaskConfig: types.TaskConfig{Role: "r"}, TaskID: "task-2"},
		Status:       types.StatusRunning,
	}
	_, err = Write(f, putTaskCommand(t, extra), func(s MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Tasks().PutTask(extra)
	})
	require.NoError(t, err)

	snap, err := f.LoadBackup(id)
	require.NoError(t, err)
	require.NoError(t, f.RestoreFrom(snap))

	tasks, err := Read(f, func(s StoreProvider) ([]*types.ScheduledTask, error) {
		return s.Tasks().ListTasks()
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1, "restore must drop tasks created after the backup")
	require.Equal(t, "task-1", tasks[0].TaskID)
}

var assertErr = &fakeErr{"injected failure"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }
