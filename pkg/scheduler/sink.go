package scheduler

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/clock"
	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/statemachine"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// Assignment is the host/port data a successful placement attaches to a
// task in the same commit as its PENDING->ASSIGNED transition.
type Assignment struct {
	SlaveID   string
	SlaveHost string
	Ports     []types.PortAssignment
}

// KillNotifier is told to terminate an in-flight attempt. The executor/agent
// protocol that actually delivers this instruction to a host is an external
// collaborator; TaskSink only needs a narrow hook to invoke.
type KillNotifier interface {
	NotifyKill(taskID string)
}

// TaskSink is the statemachine.WorkSink that turns every lifecycle
// transition into a single storage.TaskTransitionCommand write. It is the
// one place WorkCommands become durable task-table mutations.
type TaskSink struct {
	facade *storage.Facade
	host   *statemachine.Host
	clock  clock.Clock
	kill   KillNotifier
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[string]Assignment
}

// NewTaskSink builds a TaskSink. BindHost must be called once the owning
// statemachine.Host exists, since Host requires a sink at construction time
// and TaskSink needs the Host back to read a machine's current failure
// count.
func NewTaskSink(facade *storage.Facade, c clock.Clock, kill KillNotifier) *TaskSink {
	return &TaskSink{
		facade:  facade,
		clock:   c,
		kill:    kill,
		logger:  log.WithComponent("task-sink"),
		pending: make(map[string]Assignment),
	}
}

// BindHost completes the two-phase construction required by the Host<->Sink
// cycle: statemachine.NewHost(sink) needs a sink before the Host exists.
func (s *TaskSink) BindHost(h *statemachine.Host) { s.host = h }

// StageAssignment records the host/port assignment a placement attempt is
// about to commit. It must be called from the same goroutine immediately
// before the corresponding host.UpdateState(taskID, StatusAssigned, ...)
// call, so ApplyWorkCommands observes it within the same transition.
func (s *TaskSink) StageAssignment(taskID string, a Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[taskID] = a
}

func (s *TaskSink) takeAssignment(taskID string) (Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.pending[taskID]
	if ok {
		delete(s.pending, taskID)
	}
	return a, ok
}

// DiscardAssignment clears a staged assignment that was never committed,
// e.g. because the UpdateState call it was staged for turned out to be an
// illegal transition (which returns nil without ever invoking
// ApplyWorkCommands) or failed outright. Safe to call even if nothing is
// staged for taskID.
func (s *TaskSink) DiscardAssignment(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, taskID)
}

// ApplyWorkCommands implements statemachine.WorkSink.
func (s *TaskSink) ApplyWorkCommands(event statemachine.UpdateEvent, commands []statemachine.WorkCommand) error {
	failureCount := 0
	if s.host != nil {
		if m, ok := s.host.Machine(event.TaskID); ok {
			failureCount = m.FailureCount()
		}
	}

	p := storage.TaskTransitionCommand{
		TaskID:        event.TaskID,
		Status:        event.Status,
		Message:       event.Message,
		SchedulerHost: event.SchedulerHost,
		Timestamp:     s.clock.Now(),
		FailureCount:  failureCount,
	}

	var notifyKill bool
	for _, c := range commands {
		switch c.Kind {
		case statemachine.CommandUpdateState:
			p.UpdateState = true
		case statemachine.CommandKill:
			notifyKill = true
		case statemachine.CommandDelete:
			p.Delete = true
		case statemachine.CommandReschedule:
			p.RescheduleTaskID = uuid.NewString()
		}
	}

	// A zombie-kill transition (terminal task re-reporting as alive) fires
	// only CommandKill: the task's stored record must stay untouched, so
	// there is nothing to write or replay.
	if p.UpdateState || p.Delete || p.RescheduleTaskID != "" {
		if a, ok := s.takeAssignment(event.TaskID); ok {
			p.HasAssignment = true
			p.SlaveID = a.SlaveID
			p.SlaveHost = a.SlaveHost
			p.Ports = a.Ports
		}

		cmd := storage.NewTaskTransitionCommand(p)
		_, err := storage.Write(s.facade, cmd, func(sp storage.MutableStoreProvider) (struct{}, error) {
			return struct{}{}, storage.ApplyTaskTransition(sp, p)
		})
		if err != nil {
			return err
		}

		if p.Delete && s.host != nil {
			s.host.Forget(event.TaskID)
		}
		if p.RescheduleTaskID != "" && s.host != nil {
			maxFailures, isService := s.taskPolicy(event.TaskID)
			s.host.Track(p.RescheduleTaskID, types.StatusPending, isService, maxFailures, p.FailureCount)
		}
	}

	if notifyKill && s.kill != nil {
		s.kill.NotifyKill(event.TaskID)
	}

	s.logger.Debug().
		Str("task_id", event.TaskID).
		Str("status", string(event.Status)).
		Bool("delete", p.Delete).
		Str("reschedule_task_id", p.RescheduleTaskID).
		Msg("applied task work commands")
	return nil
}

// taskPolicy looks up the policy fields (isService, maxTaskFailures) a
// rescheduled task's new machine must be tracked with; they live on the
// TaskConfig, not the machine, so this is a storage read rather than a
// Host lookup.
func (s *TaskSink) taskPolicy(taskID string) (maxTaskFailures int, isService bool) {
	task, err := storage.Read(s.facade, func(sp storage.StoreProvider) (*struct {
		MaxTaskFailures int
		IsService       bool
	}, error) {
		t, found, err := sp.Tasks().GetTask(taskID)
		if err != nil || !found {
			return nil, err
		}
		return &struct {
			MaxTaskFailures int
			IsService       bool
		}{t.MaxTaskFailures, t.IsService}, nil
	})
	if err != nil || task == nil {
		return -1, false
	}
	return task.MaxTaskFailures, task.IsService
}
