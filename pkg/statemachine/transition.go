package statemachine

import "github.com/ballast-sched/ballast/pkg/types"

// WorkCommandKind names a side effect a transition asks the enclosing
// transaction to perform.
type WorkCommandKind string

const (
	CommandUpdateState      WorkCommandKind = "UPDATE_STATE"
	CommandKill             WorkCommandKind = "KILL"
	CommandReschedule       WorkCommandKind = "RESCHEDULE"
	CommandIncrementFailure WorkCommandKind = "INCREMENT_FAILURES"
	CommandDelete           WorkCommandKind = "DELETE"
)

// WorkCommand is one emitted side effect. Status is populated only for
// CommandUpdateState.
type WorkCommand struct {
	Kind   WorkCommandKind
	Status types.TaskStatus
}

// TransitionInput is everything Transition needs beyond the bare (from, to)
// edge to decide which WorkCommands fire.
type TransitionInput struct {
	From            types.TaskStatus
	To              types.TaskStatus
	IsService       bool
	MaxTaskFailures int // -1 = unlimited
	FailureCount    int // failure count before this transition
}

// TransitionResult is the outcome of evaluating one transition attempt.
type TransitionResult struct {
	NewState types.TaskStatus
	Commands []WorkCommand
	Legal    bool
}

var legalTransitions = map[types.TaskStatus]map[types.TaskStatus]bool{
	types.StatusInit: statusSet(types.StatusPending, types.StatusThrottled, types.StatusUnknown),

	types.StatusPending:   statusSet(types.StatusAssigned, types.StatusKilling),
	types.StatusThrottled: statusSet(types.StatusPending, types.StatusKilling),

	types.StatusAssigned: statusSet(
		types.StatusStarting, types.StatusRunning, types.StatusFinished, types.StatusFailed,
		types.StatusRestarting, types.StatusKilled, types.StatusKilling, types.StatusLost, types.StatusPreempting,
	),
	types.StatusStarting: statusSet(
		types.StatusRunning, types.StatusFinished, types.StatusFailed, types.StatusRestarting,
		types.StatusKilling, types.StatusKilled, types.StatusLost, types.StatusPreempting,
	),
	types.StatusRunning: statusSet(
		types.StatusFinished, types.StatusRestarting, types.StatusFailed,
		types.StatusKilling, types.StatusKilled, types.StatusLost, types.StatusPreempting,
	),

	types.StatusPreempting: statusSet(
		types.StatusFinished, types.StatusFailed, types.StatusKilling, types.StatusKilled, types.StatusLost,
	),
	types.StatusRestarting: statusSet(
		types.StatusFinished, types.StatusFailed, types.StatusKilling, types.StatusKilled, types.StatusLost,
	),

	types.StatusKilling: statusSet(
		types.StatusFinished, types.StatusFailed, types.StatusKilled, types.StatusLost, types.StatusUnknown,
	),

	types.StatusFinished: statusSet(types.StatusUnknown),
	types.StatusFailed:    statusSet(types.StatusUnknown),
	types.StatusKilled:    statusSet(types.StatusUnknown),
	types.StatusLost:      statusSet(types.StatusUnknown),

	types.StatusUnknown: {},
}

func statusSet(statuses ...types.TaskStatus) map[types.TaskStatus]bool {
	m := make(map[types.TaskStatus]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

// Transition evaluates one (from, to) edge and returns the new state and the
// WorkCommands it emits. It never mutates shared state — callers (machine.go)
// own applying NewState and counting failures.
func Transition(in TransitionInput) TransitionResult {
	from, to := in.From, in.To

	// Zombie: a terminal task re-receiving an update that looks like it's
	// still alive gets a KILL, not a state change — the agent is told to
	// terminate a process the scheduler no longer tracks as running.
	if from.IsTerminal() && isAliveStatus(to) {
		return TransitionResult{
			NewState: from,
			Commands: []WorkCommand{{Kind: CommandKill}},
			Legal:    true,
		}
	}

	// The agent stopped reporting a task it had acknowledged: rewrite the
	// observed UNKNOWN to LOST before checking legality.
	if (from == types.StatusStarting || from == types.StatusRunning) && to == types.StatusUnknown {
		to = types.StatusLost
	}

	if from == to {
		// Noop transitions are silently dropped.
		return TransitionResult{NewState: from, Legal: true}
	}

	if allowed := legalTransitions[from]; allowed == nil || !allowed[to] {
		return TransitionResult{NewState: from, Legal: false}
	}

	var commands []WorkCommand

	switch {
	case isNoAgentDelete(from, to):
		commands = append(commands, WorkCommand{Kind: CommandDelete})
	case from.IsTerminal() && to == types.StatusUnknown:
		commands = append(commands, WorkCommand{Kind: CommandDelete})
	case to != types.StatusUnknown:
		commands = append(commands, WorkCommand{Kind: CommandUpdateState, Status: to})
	}

	if emitsKill(from, to) {
		commands = append(commands, WorkCommand{Kind: CommandKill})
	}

	if to == types.StatusFailed {
		commands = append(commands, WorkCommand{Kind: CommandIncrementFailure})
	}

	if emitsReschedule(from, to, in) {
		commands = append(commands, WorkCommand{Kind: CommandReschedule})
	}

	return TransitionResult{NewState: to, Commands: commands, Legal: true}
}

func isAliveStatus(s types.TaskStatus) bool {
	return s == types.StatusAssigned || s == types.StatusStarting || s == types.StatusRunning
}

// isNoAgentDelete covers PENDING/THROTTLED -> KILLING: the task was never
// handed to an agent, so the record is deleted outright rather than updated.
func isNoAgentDelete(from, to types.TaskStatus) bool {
	return to == types.StatusKilling && (from == types.StatusPending || from == types.StatusThrottled)
}

func emitsKill(from, to types.TaskStatus) bool {
	switch {
	case to == types.StatusKilling && (from == types.StatusAssigned || from == types.StatusStarting || from == types.StatusRunning):
		return true
	case to == types.StatusRestarting:
		return true
	case to == types.StatusPreempting:
		return true
	case to == types.StatusLost && (from == types.StatusPreempting || from == types.StatusRestarting):
		return true
	default:
		return false
	}
}

func emitsReschedule(from, to types.TaskStatus, in TransitionInput) bool {
	switch to {
	case types.StatusFinished:
		return in.IsService
	case types.StatusFailed:
		if in.MaxTaskFailures == -1 {
			return true
		}
		return in.IsService || in.FailureCount < in.MaxTaskFailures-1
	case types.StatusKilled, types.StatusLost:
		switch from {
		case types.StatusRunning, types.StatusStarting, types.StatusAssigned, types.StatusPreempting, types.StatusRestarting:
			return true
		}
	}
	return false
}
