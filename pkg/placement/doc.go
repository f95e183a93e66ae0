// Package placement turns one pending task into a host/port assignment.
//
// # Offers
//
// An OfferPool holds resource offers pushed in by the cluster resource
// manager (an external collaborator). TryReserve pops an offer atomically,
// so two concurrent placement attempts racing the same candidate can never
// both win it; the loser simply continues to its next candidate.
//
// # Filtering
//
// Place walks the pool's current snapshot in arbitrary order, rejecting
// offers whose host is draining or drained, whose resources
// fall short of the task's request, or whose attributes fail any of the
// task's constraints (equals/value_set via a bexpr predicate per attribute
// value, limit via a plain count against the job's other active hosts).
// The first offer to survive every filter and a successful reservation
// wins.
//
// # Committing
//
// A win is committed in two coupled steps: the host/port assignment is
// staged on the scheduler.TaskSink, then the statemachine.Host is driven
// PENDING->ASSIGNED. The sink picks up the staged assignment inside the
// same WorkSink call that persists the transition, so both land in one
// facade write. If the transition turns out to be illegal - UpdateState
// returns nil without ever calling the sink - the staged assignment is
// discarded and the offer released, since nothing else will clean either
// up.
package placement
