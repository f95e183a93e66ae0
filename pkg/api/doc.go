/*
Package api implements the scheduler's external RPC surface: every
operation an operator or client issues against the cluster — create a job,
kill tasks, drain a host, take a backup — arrives here as a typed request
and leaves as a typed Response carrying a schederr response code.

The wire transport, authentication token validation, and executor/agent
protocol are external collaborators this package does not implement: it
exposes its operations as a plain Go interface (Server's methods) plus an
explicit Dispatcher, and expects whatever transport layer sits in front of
it to translate wire requests into Server calls and Credentials.

# Architecture

	┌──────────────────────── pkg/api ──────────────────────────┐
	│                                                             │
	│  Dispatch(ctx, operation, credential, payload)             │
	│         │                                                  │
	│         ▼                                                  │
	│   ┌───────────────┐   auth → logging → metrics             │
	│   │  Dispatcher   │──────────────────────────────┐         │
	│   └───────────────┘                              │         │
	│         │                                         ▼         │
	│         │                                  HandlerFunc       │
	│         ▼                                  (per operation)   │
	│   registered operation's handler ───────────────────────────┤
	│                                                             │
	└─────────────────────────────────────────────────────────────┘
	        │              │            │            │
	        ▼              ▼            ▼            ▼
	  storage.Facade  lock.Manager  quota.Checker  statemachine.Host
	        │                                          │
	        ▼                                          ▼
	  maintenance.Controller / recovery.Controller / cron.Scheduler

# Dispatch table and middleware

Dispatcher.Register binds an operation name to a HandlerFunc, the roles a
caller must hold to invoke it (computed per-request, since most operations
authorize against a role named inside their own payload rather than a
static string), and whether it is admin-only. Register pre-wraps the
handler with the full middleware chain once, at startup, so Dispatch itself
stays a single map lookup plus one call.

The default chain, in order: authMiddleware rejects before any handler
runs, loggingMiddleware and metricsMiddleware wrap whatever ran — success
or failure. authMiddleware is the outermost wrapper, so a call it rejects
never reaches loggingMiddleware or metricsMiddleware and is neither logged
nor counted by them.

# Task tracking

Every operation that creates a brand-new (non-reschedule) task id —
CreateJob and AddInstances — calls statemachine.Host.Track synchronously,
in the same call that persists the task via storage.Write. UpdateState
fails against any task id never passed to Track, and the event broker's
task.put delivery is best-effort, so task creation cannot rely on the
event stream to arm a task's first transition.

# Error handling

Handlers return a *schederr.Error (or one of its constructors) for any
expected failure — invalid input, lock contention, missing quota, a
kill-and-wait timeout — and schederr.Code translates it into the
Response's response code at the boundary. An unanticipated error is left
as-is and surfaces as schederr.ResponseError with its message intact;
callers should treat a bare ERROR response as an operational signal to
check logs rather than parse the message for meaning.

# Administrative HTTP surface

AdminServer exposes /health, /ready, /live, and /metrics over plain
net/http, independent of the Dispatcher: these are liveness/readiness
probes for an orchestrator, not part of the scheduler's own RPC surface.
*/
package api
