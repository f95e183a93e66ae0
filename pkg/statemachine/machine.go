package statemachine

import (
	"sync"

	"github.com/ballast-sched/ballast/pkg/types"
	"github.com/rs/zerolog"
)

// TaskStateMachine is the authoritative lifecycle of one task. It wraps the
// pure Transition function with the mutable bits a live task needs: its
// current status, failure count, and an illegal-transition counter.
//
// A machine is created at whatever status the task was last persisted at —
// not always INIT — so log replay can reconstruct it mid-lifecycle.
type TaskStateMachine struct {
	mu sync.Mutex

	status          types.TaskStatus
	isService       bool
	maxTaskFailures int
	failureCount    int

	illegalTransitions uint64
	logger              zerolog.Logger
}

func newMachine(initial types.TaskStatus, isService bool, maxTaskFailures, failureCount int, logger zerolog.Logger) *TaskStateMachine {
	return &TaskStateMachine{
		status:          initial,
		isService:       isService,
		maxTaskFailures: maxTaskFailures,
		failureCount:    failureCount,
		logger:          logger,
	}
}

// Status returns the machine's current status.
func (m *TaskStateMachine) Status() types.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// FailureCount returns the number of FAILED transitions observed so far.
func (m *TaskStateMachine) FailureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failureCount
}

// IllegalTransitions returns the count of rejected transition attempts.
func (m *TaskStateMachine) IllegalTransitions() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.illegalTransitions
}

// Fire attempts to move the machine to newStatus. It reports whether the
// transition was legal and, if so, the WorkCommands the caller must apply
// inside the enclosing storage transaction. An illegal attempt is logged and
// counted but otherwise produces no state change and no commands.
func (m *TaskStateMachine) Fire(newStatus types.TaskStatus) (legal bool, commands []WorkCommand) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := Transition(TransitionInput{
		From:            m.status,
		To:              newStatus,
		IsService:       m.isService,
		MaxTaskFailures: m.maxTaskFailures,
		FailureCount:    m.failureCount,
	})

	if !result.Legal {
		m.illegalTransitions++
		m.logger.Warn().
			Str("from", string(m.status)).
			Str("to", string(newStatus)).
			Uint64("illegal_transitions", m.illegalTransitions).
			Msg("illegal task state transition dropped")
		return false, nil
	}

	m.status = result.NewState
	for _, c := range result.Commands {
		if c.Kind == CommandIncrementFailure {
			m.failureCount++
		}
	}
	return true, result.Commands
}
