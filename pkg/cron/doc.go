// Package cron drives cron-templated jobs: launching a fresh batch of task
// instances from a JobConfiguration's TaskConfig template, either on an
// operator's explicit startCronJob request or automatically once its
// cronSchedule next comes due.
//
// Schedule evaluation is hashicorp/cronexpr's job: Scheduler keeps one
// parsed *cronexpr.Expression and last-fire timestamp per cron JobKey in
// memory and re-evaluates them on every Run tick. Losing that in-memory
// fire history across a restart just means the next due time is
// recomputed from "now" instead of the last real fire — acceptable since
// cron semantics here are "launch roughly on schedule", not exactly-once
// delivery.
//
// Every task StartCronJob launches is registered with the statemachine Host
// directly, in the same call that persists it, rather than through the
// event broker's best-effort task.put delivery: a task whose first
// transition silently fails because it was never tracked is a correctness
// bug, not a tolerable missed wakeup.
package cron
