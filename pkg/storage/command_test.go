package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ballast-sched/ballast/pkg/types"
)

func TestApplyTaskTransitionUpdatesStateWhenFlagged(t *testing.T) {
	f := newTestFacade(t)

	task := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{TaskConfig: types.TaskConfig{Role: "r"}, TaskID: "task-1"},
		Status:       types.StatusPending,
	}
	_, err := Write(f, putTaskCommand(t, task), func(s MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Tasks().PutTask(task)
	})
	require.NoError(t, err)

	p := TaskTransitionCommand{
		TaskID:      "task-1",
		Status:      types.StatusAssigned,
		Message:     "placed",
		Timestamp:   time.Now(),
		UpdateState: true,
	}
	_, err = Write(f, NewTaskTransitionCommand(p), func(s MutableStoreProvider) (struct{}, error) {
		return struct{}{}, ApplyTaskTransition(s, p)
	})
	require.NoError(t, err)

	got, err := Read(f, func(s StoreProvider) (*types.ScheduledTask, error) {
		t, _, err := s.Tasks().GetTask("task-1")
		return t, err
	})
	require.NoError(t, err)
	require.Equal(t, types.StatusAssigned, got.Status)
	require.Len(t, got.Events, 1)
}

func TestApplyTaskTransitionLeavesTaskUntouchedWithoutUpdateState(t *testing.T) {
	f := newTestFacade(t)

	task := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{TaskConfig: types.TaskConfig{Role: "r"}, TaskID: "task-1"},
		Status:       types.StatusFinished,
	}
	_, err := Write(f, putTaskCommand(t, task), func(s MutableStoreProvider) (struct{}, error) {
		return struct{}{}, s.Tasks().PutTask(task)
	})
	require.NoError(t, err)

	// A zombie-kill transition (terminal task re-reporting alive) fires only
	// CommandKill upstream; no UpdateState means nothing here should touch
	// the stored record.
	p := TaskTransitionCommand{
		TaskID:    "task-1",
		Status:    types.StatusRunning,
		Timestamp: time.Now(),
	}
	_, err = Write(f, NewTaskTransitionCommand(p), func(s MutableStoreProvider) (struct{}, error) {
		return struct{}{}, ApplyTaskTransition(s, p)
	})
	require.NoError(t, err)

	got, err := Read(f, func(s StoreProvider) (*types.ScheduledTask, error) {
		t, _, err := s.Tasks().GetTask("task-1")
		return t, err
	})
	require.NoError(t, err)
	require.Equal(t, types.StatusFinished, got.Status, "terminal task status must stay unchanged")
	require.Empty(t, got.Events, "no TaskEvent should be appended for a no-op state mutation")
}
