package statemachine

import (
	"testing"

	"github.com/ballast-sched/ballast/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestTransitionHappyPath(t *testing.T) {
	// createJob -> PENDING -> ASSIGNED -> STARTING -> RUNNING -> FINISHED,
	// not a service: no reschedule, final UNKNOWN deletes the record.
	steps := []struct {
		from, to types.TaskStatus
		wantCmds []WorkCommandKind
	}{
		{types.StatusInit, types.StatusPending, []WorkCommandKind{CommandUpdateState}},
		{types.StatusPending, types.StatusAssigned, []WorkCommandKind{CommandUpdateState}},
		{types.StatusAssigned, types.StatusStarting, []WorkCommandKind{CommandUpdateState}},
		{types.StatusStarting, types.StatusRunning, []WorkCommandKind{CommandUpdateState}},
		{types.StatusRunning, types.StatusFinished, []WorkCommandKind{CommandUpdateState}},
		{types.StatusFinished, types.StatusUnknown, []WorkCommandKind{CommandDelete}},
	}

	for _, s := range steps {
		res := Transition(TransitionInput{From: s.from, To: s.to, MaxTaskFailures: -1})
		assert.True(t, res.Legal, "%s -> %s should be legal", s.from, s.to)
		assert.Equal(t, s.to, res.NewState)
		assert.Equal(t, len(s.wantCmds), len(res.Commands), "%s -> %s commands", s.from, s.to)
		for i, want := range s.wantCmds {
			assert.Equal(t, want, res.Commands[i].Kind)
		}
	}
}

func TestTransitionServiceReschedulesOnFinished(t *testing.T) {
	res := Transition(TransitionInput{From: types.StatusRunning, To: types.StatusFinished, IsService: true})
	assert.True(t, res.Legal)
	assert.Contains(t, commandKinds(res.Commands), CommandReschedule)
}

func TestTransitionNonServiceNoRescheduleOnFinished(t *testing.T) {
	res := Transition(TransitionInput{From: types.StatusRunning, To: types.StatusFinished, IsService: false})
	assert.True(t, res.Legal)
	assert.NotContains(t, commandKinds(res.Commands), CommandReschedule)
}

func TestTransitionFailureBudgetExhausted(t *testing.T) {
	// maxTaskFailures=3, failureCount=2: failureCount(2) < maxFailures-1(2) is
	// false, so no reschedule, but INCREMENT_FAILURES still fires.
	res := Transition(TransitionInput{
		From:            types.StatusRunning,
		To:              types.StatusFailed,
		MaxTaskFailures: 3,
		FailureCount:    2,
	})
	assert.True(t, res.Legal)
	kinds := commandKinds(res.Commands)
	assert.Contains(t, kinds, CommandIncrementFailure)
	assert.NotContains(t, kinds, CommandReschedule)
}

func TestTransitionFailureBudgetRemaining(t *testing.T) {
	res := Transition(TransitionInput{
		From:            types.StatusRunning,
		To:              types.StatusFailed,
		MaxTaskFailures: 3,
		FailureCount:    0,
	})
	assert.True(t, res.Legal)
	assert.Contains(t, commandKinds(res.Commands), CommandReschedule)
}

func TestTransitionUnlimitedFailuresAlwaysReschedules(t *testing.T) {
	res := Transition(TransitionInput{
		From:            types.StatusRunning,
		To:              types.StatusFailed,
		MaxTaskFailures: -1,
		FailureCount:    1000,
	})
	assert.True(t, res.Legal)
	assert.Contains(t, commandKinds(res.Commands), CommandReschedule)
}

func TestTransitionKilledFromActiveReschedulesUnconditionally(t *testing.T) {
	for _, from := range []types.TaskStatus{
		types.StatusRunning, types.StatusStarting, types.StatusAssigned,
		types.StatusPreempting, types.StatusRestarting,
	} {
		res := Transition(TransitionInput{From: from, To: types.StatusKilled})
		assert.True(t, res.Legal, "%s -> KILLED should be legal", from)
		assert.Contains(t, commandKinds(res.Commands), CommandReschedule, "%s -> KILLED", from)
	}
}

func TestTransitionKillingToKilledDoesNotReschedule(t *testing.T) {
	// An operator-initiated kill reaching KILLED via KILLING is expected, not
	// a failure to recover from.
	res := Transition(TransitionInput{From: types.StatusKilling, To: types.StatusKilled})
	assert.True(t, res.Legal)
	assert.NotContains(t, commandKinds(res.Commands), CommandReschedule)
}

func TestTransitionPendingToKillingDeletesWithoutUpdateOrKill(t *testing.T) {
	res := Transition(TransitionInput{From: types.StatusPending, To: types.StatusKilling})
	assert.True(t, res.Legal)
	kinds := commandKinds(res.Commands)
	assert.Contains(t, kinds, CommandDelete)
	assert.NotContains(t, kinds, CommandUpdateState)
	assert.NotContains(t, kinds, CommandKill)
}

func TestTransitionThrottledToKillingDeletesWithoutUpdateOrKill(t *testing.T) {
	res := Transition(TransitionInput{From: types.StatusThrottled, To: types.StatusKilling})
	assert.True(t, res.Legal)
	kinds := commandKinds(res.Commands)
	assert.Contains(t, kinds, CommandDelete)
	assert.NotContains(t, kinds, CommandUpdateState)
	assert.NotContains(t, kinds, CommandKill)
}

func TestTransitionRunningToKillingEmitsKill(t *testing.T) {
	res := Transition(TransitionInput{From: types.StatusRunning, To: types.StatusKilling})
	assert.True(t, res.Legal)
	assert.Contains(t, commandKinds(res.Commands), CommandKill)
}

func TestTransitionAnyToRestartingOrPreemptingEmitsKill(t *testing.T) {
	for _, to := range []types.TaskStatus{types.StatusRestarting, types.StatusPreempting} {
		res := Transition(TransitionInput{From: types.StatusRunning, To: to})
		assert.True(t, res.Legal)
		assert.Contains(t, commandKinds(res.Commands), CommandKill, "-> %s", to)
	}
}

func TestTransitionPreemptingRestartingToLostEmitsKillAndReschedule(t *testing.T) {
	for _, from := range []types.TaskStatus{types.StatusPreempting, types.StatusRestarting} {
		res := Transition(TransitionInput{From: from, To: types.StatusLost})
		assert.True(t, res.Legal)
		kinds := commandKinds(res.Commands)
		assert.Contains(t, kinds, CommandKill, "%s -> LOST", from)
		assert.Contains(t, kinds, CommandReschedule, "%s -> LOST", from)
	}
}

func TestTransitionStartingRunningToUnknownRewritesToLost(t *testing.T) {
	for _, from := range []types.TaskStatus{types.StatusStarting, types.StatusRunning} {
		res := Transition(TransitionInput{From: from, To: types.StatusUnknown})
		assert.True(t, res.Legal)
		assert.Equal(t, types.StatusLost, res.NewState)
	}
}

func TestTransitionZombieTerminalReceivesActiveUpdateEmitsKillOnly(t *testing.T) {
	for _, terminal := range []types.TaskStatus{types.StatusFinished, types.StatusFailed, types.StatusKilled, types.StatusLost} {
		for _, alive := range []types.TaskStatus{types.StatusAssigned, types.StatusStarting, types.StatusRunning} {
			res := Transition(TransitionInput{From: terminal, To: alive})
			assert.True(t, res.Legal, "%s -> %s zombie case", terminal, alive)
			assert.Equal(t, terminal, res.NewState, "zombie stays terminal")
			assert.Equal(t, []WorkCommand{{Kind: CommandKill}}, res.Commands)
		}
	}
}

func TestTransitionIllegalEdgeDropped(t *testing.T) {
	res := Transition(TransitionInput{From: types.StatusPending, To: types.StatusRunning})
	assert.False(t, res.Legal)
	assert.Equal(t, types.StatusPending, res.NewState)
	assert.Empty(t, res.Commands)
}

func TestTransitionNoopDropped(t *testing.T) {
	res := Transition(TransitionInput{From: types.StatusRunning, To: types.StatusRunning})
	assert.True(t, res.Legal)
	assert.Empty(t, res.Commands)
}

func TestTransitionEveryEdgeInSpecTableIsLegal(t *testing.T) {
	table := map[types.TaskStatus][]types.TaskStatus{
		types.StatusInit:       {types.StatusPending, types.StatusThrottled, types.StatusUnknown},
		types.StatusPending:    {types.StatusAssigned, types.StatusKilling},
		types.StatusThrottled:  {types.StatusPending, types.StatusKilling},
		types.StatusAssigned:   {types.StatusStarting, types.StatusRunning, types.StatusFinished, types.StatusFailed, types.StatusRestarting, types.StatusKilled, types.StatusKilling, types.StatusLost, types.StatusPreempting},
		types.StatusStarting:   {types.StatusRunning, types.StatusFinished, types.StatusFailed, types.StatusRestarting, types.StatusKilling, types.StatusKilled, types.StatusLost, types.StatusPreempting},
		types.StatusRunning:    {types.StatusFinished, types.StatusRestarting, types.StatusFailed, types.StatusKilling, types.StatusKilled, types.StatusLost, types.StatusPreempting},
		types.StatusPreempting: {types.StatusFinished, types.StatusFailed, types.StatusKilling, types.StatusKilled, types.StatusLost},
		types.StatusRestarting: {types.StatusFinished, types.StatusFailed, types.StatusKilling, types.StatusKilled, types.StatusLost},
		types.StatusKilling:    {types.StatusFinished, types.StatusFailed, types.StatusKilled, types.StatusLost, types.StatusUnknown},
		types.StatusFinished:   {types.StatusUnknown},
		types.StatusFailed:     {types.StatusUnknown},
		types.StatusKilled:     {types.StatusUnknown},
		types.StatusLost:       {types.StatusUnknown},
	}

	for from, tos := range table {
		for _, to := range tos {
			res := Transition(TransitionInput{From: from, To: to, MaxTaskFailures: -1})
			assert.True(t, res.Legal, "%s -> %s must be legal per the spec table", from, to)
		}
	}
}

func commandKinds(cmds []WorkCommand) []WorkCommandKind {
	kinds := make([]WorkCommandKind, len(cmds))
	for i, c := range cmds {
		kinds[i] = c.Kind
	}
	return kinds
}
