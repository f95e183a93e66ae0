/*
Package scheduler implements the scheduling loop: one FIFO queue of pending
tasks per scheduling-equivalence class (a GroupKey), each worked by a single
goroutine that cooperates with a shared placement rate limiter.

# Groups

GroupKeyOf partitions TaskConfigs into equivalence classes by hashing every
field that affects placement feasibility — resource shape, container spec,
constraints, tier — while excluding fields that only affect lifecycle policy
(IsService, MaxTaskFailures, Priority). Two tasks in the same group are
interchangeable from the placer's point of view.

A TaskGroup is, at any instant, one of:

  - EMPTY: nothing queued.
  - NOT_READY: the head entry's readyAt is still in the future.
  - READY: the head entry's readyAt has passed; it can be attempted now.

# Worker loop

Each group's goroutine (Loop.runGroup) sleeps until its state next changes
(the head's readyAt, or a wake signal from Enqueue/pushBack), then on READY
pops the head, waits for a placement-rate-limiter permit, and calls the
injected Placer. A successful placement resets the group's backoff; a failed
one pushes the task back onto the tail with a new readyAt computed from the
group's Backoff, and asks the injected Preemptor to look for a victim the
next attempt might exploit — preemption search failing or finding nothing
does not change the group's retry schedule, only its logging.

# Entry points

Tasks enter a group's queue three ways: a task.put event for a task that
just committed into PENDING (the common case, delivered by pkg/events);
storage signaling readiness after startup recovery, at which point every
currently-PENDING task is enumerated and enqueued with a bounded random
initial delay to avoid a reconnect thundering herd; and a task.deleted event,
on which the loop removes the task from every group's queue so a
queued-but-now-gone task is never attempted.

# Backoff

ExponentialBackoff doubles a group's penalty on every failed attempt up to a
30s ceiling (from a 1s floor), with full jitter so groups backing off
together don't all retry on the same tick. One fairness consequence of
driving every group off the same rate.Limiter: across N groups each with a
task ready, one limiter tick grants at most one group a placement attempt,
so no group can starve another by retrying faster.
*/
package scheduler
