package statemachine

import (
	"fmt"
	"sync"

	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/types"
	"github.com/rs/zerolog"
)

// UpdateEvent carries the audit context a status update attaches to the
// WorkCommands it produced.
type UpdateEvent struct {
	TaskID        string
	Status        types.TaskStatus
	Message       string
	SchedulerHost string
}

// WorkSink applies the WorkCommands emitted by one transition inside the
// storage transaction that triggered it — either everything commits
// (new status, appended event, any derived reschedule or delete) or nothing
// does.
type WorkSink interface {
	ApplyWorkCommands(event UpdateEvent, commands []WorkCommand) error
}

// Host maintains a mapping taskId -> TaskStateMachine for every live task
// and routes the three external event sources — agent status updates,
// placement results, and operator-triggered transitions — into a single
// UpdateState call per event.
type Host struct {
	mu       sync.RWMutex
	machines map[string]*TaskStateMachine
	sink     WorkSink
	logger   zerolog.Logger
}

// NewHost builds a Host that applies commands through sink.
func NewHost(sink WorkSink) *Host {
	return &Host{
		machines: make(map[string]*TaskStateMachine),
		sink:     sink,
		logger:   log.WithComponent("statemachine-host"),
	}
}

// Track registers a live task's machine at its current status — PENDING for a
// brand-new task, or whatever status was last persisted when reconstructing
// from a snapshot/log replay.
func (h *Host) Track(taskID string, status types.TaskStatus, isService bool, maxTaskFailures, failureCount int) *TaskStateMachine {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := newMachine(status, isService, maxTaskFailures, failureCount, log.WithTaskID(taskID))
	h.machines[taskID] = m
	return m
}

// Forget drops a task's machine, e.g. after it is garbage-collected
// following its UNKNOWN transition or an operator delete.
func (h *Host) Forget(taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.machines, taskID)
}

// Machine returns the tracked machine for taskID, if any.
func (h *Host) Machine(taskID string) (*TaskStateMachine, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.machines[taskID]
	return m, ok
}

// UpdateState fires one status update against the named task's machine and
// applies the resulting WorkCommands through the sink. An illegal transition
// is already logged and counted by the machine itself; UpdateState returns
// nil for it rather than surfacing an error, matching the specified
// "logged, counted, dropped" treatment.
func (h *Host) UpdateState(taskID string, newStatus types.TaskStatus, message, schedulerHost string) error {
	m, ok := h.Machine(taskID)
	if !ok {
		return fmt.Errorf("statemachine: no tracked task %q", taskID)
	}

	legal, commands := m.Fire(newStatus)
	if !legal {
		return nil
	}
	if len(commands) == 0 {
		// A legal transition with no work commands - a true noop (from ==
		// to), or one such as KILLING->UNKNOWN that the table leaves without
		// commands - is silently dropped: there is nothing for the sink to
		// apply.
		return nil
	}

	return h.sink.ApplyWorkCommands(UpdateEvent{
		TaskID:        taskID,
		Status:        m.Status(),
		Message:       message,
		SchedulerHost: schedulerHost,
	}, commands)
}
