package statemachine

import (
	"testing"

	"github.com/ballast-sched/ballast/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(initial types.TaskStatus, isService bool, maxTaskFailures int) *TaskStateMachine {
	return newMachine(initial, isService, maxTaskFailures, 0, zerolog.Nop())
}

func TestMachineFireLegalAdvancesStatus(t *testing.T) {
	m := newTestMachine(types.StatusInit, false, -1)

	legal, cmds := m.Fire(types.StatusPending)
	require.True(t, legal)
	require.Len(t, cmds, 1)
	assert.Equal(t, CommandUpdateState, cmds[0].Kind)
	assert.Equal(t, types.StatusPending, m.Status())
}

func TestMachineFireIllegalLeavesStatusAndCounts(t *testing.T) {
	m := newTestMachine(types.StatusPending, false, -1)

	legal, cmds := m.Fire(types.StatusRunning)
	assert.False(t, legal)
	assert.Nil(t, cmds)
	assert.Equal(t, types.StatusPending, m.Status())
	assert.Equal(t, uint64(1), m.IllegalTransitions())
}

func TestMachineFireIncrementsFailureCount(t *testing.T) {
	m := newTestMachine(types.StatusRunning, false, 3)

	legal, cmds := m.Fire(types.StatusFailed)
	require.True(t, legal)
	assert.Equal(t, 1, m.FailureCount())

	found := false
	for _, c := range cmds {
		if c.Kind == CommandIncrementFailure {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMachineReconstructedMidLifecycleRetainsFailureCount(t *testing.T) {
	// Replay from a snapshot: the machine starts at RUNNING with a failure
	// count already at 2, not INIT with 0.
	m := newMachine(types.StatusRunning, false, 3, 2, zerolog.Nop())

	legal, cmds := m.Fire(types.StatusFailed)
	require.True(t, legal)
	assert.Equal(t, 3, m.FailureCount())

	rescheduled := false
	for _, c := range cmds {
		if c.Kind == CommandReschedule {
			rescheduled = true
		}
	}
	assert.False(t, rescheduled, "budget exhausted: failureCount(2) < maxFailures-1(2) is false")
}
