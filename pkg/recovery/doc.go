// Package recovery implements the backup/restage/restore workflow: taking a
// point-in-time backup of every store, staging one for inspection without
// touching live state, and finally committing it over the live stores.
//
// Backups are the facade's existing snapshot mechanism (*storage.Facade.Backup),
// so listBackups is just an enumeration of retained snapshot generations and
// restoring one is the same in-memory replace the facade already performs on
// startup recovery, driven here by an operator instead of by process start.
//
// Staging is deliberately a separate step from committing: stageRecovery only
// loads a backup into the Controller's memory so queryRecovery and
// deleteRecoveryTasks can inspect and edit it before anything live is
// touched. Nothing is applied to the facade until commitRecovery, and
// unloadRecovery discards the staged copy without ever reaching it.
package recovery
