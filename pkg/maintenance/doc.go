// Package maintenance drives the host drain lifecycle:
//
//	NONE -> SCHEDULED -> DRAINING -> DRAINED -> NONE
//
// StartMaintenance and Drain are operator-triggered transitions; DRAINED
// is reached automatically once a draining host's last active task
// leaves, detected by ReconcileDrains, which the Controller re-runs on
// every task lifecycle event while started. EndMaintenance is an
// unconditional operator override back to NONE from any state.
//
// Evicting a host's active tasks goes through the same statemachine.Host
// every other lifecycle transition uses: Drain fires RESTARTING on each
// one, which the transition table answers with a KILL, and with a
// RESCHEDULE once the task reaches KILLED or LOST, so the replacement tasks
// land back in PENDING against hosts that are not draining.
package maintenance
