// Package preempt finds a victim task to terminate on behalf of a
// candidate the scheduling loop could not place.
//
// A candidate may only preempt a running task of a strictly lower tier, or
// an equal-tier task of lower priority (tierRank + outranks). Among the
// victims it is allowed to take and that alone free enough resources for
// the candidate, it picks the cheapest sufficient one, to minimize
// collateral disruption. The chosen victim is driven to PREEMPTING through
// the statemachine Host, which routes the resulting kill command through
// the same TaskSink the scheduling loop's placements commit through -
// preempt never touches storage directly.
package preempt
