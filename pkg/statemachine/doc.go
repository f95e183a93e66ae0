/*
Package statemachine implements the per-task lifecycle: a pure transition
function over the fourteen-state graph, a stateful wrapper that tracks one
task's current status and failure count, and a host that maps every live
task id to its machine and routes external events into it.

# Why a pure function

Deep callback chains for state-machine transitions are re-expressed here as
a pure transition(state, event) -> (state', workCommands[]) function
(Transition, in transition.go) plus an interpreter (TaskStateMachine.Fire)
that applies the returned commands. Transition takes no locks and touches no
shared state, so the entire transition table is covered by table-driven unit
tests with no mocking.

# Commands, not actions

A transition never performs an action directly. It returns a slice of
WorkCommand values — UPDATE_STATE, KILL, RESCHEDULE, INCREMENT_FAILURES,
DELETE — that the caller applies inside the enclosing storage write
transaction. This is what lets the facade guarantee that a task's new
status, its appended event, and any derived reschedule or delete commit (or
roll back) as one unit.

# Special cases

Three rules don't fall out of the plain adjacency table and are handled
explicitly in Transition:

  - STARTING/RUNNING observing UNKNOWN is rewritten to LOST before the table
    is consulted — the agent stopped reporting a task it had acknowledged.
  - A terminal task (FINISHED/FAILED/KILLED/LOST) re-receiving an
    ASSIGNED/STARTING/RUNNING update is a zombie: it stays terminal but emits
    KILL, telling the agent to terminate a process the scheduler no longer
    tracks as running.
  - PENDING/THROTTLED -> KILLING never reached an agent, so it emits DELETE
    instead of UPDATE_STATE.

# Host

Host (host.go) owns the taskId -> *TaskStateMachine map and is the single
place the three event sources — agent status reports, placement results,
and operator-triggered transitions (kill, restart, forceTaskState) — funnel
through. It applies the resulting commands via a WorkSink, an interface
scheduler.TaskSink implements on top of the storage facade; Host has no
dependency on storage itself, which
is what keeps the scheduler/state-machine/preemptor/groups dependency graph
acyclic.
*/
package statemachine
