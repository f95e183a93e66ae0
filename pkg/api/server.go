package api

import (
	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/clock"
	"github.com/ballast-sched/ballast/pkg/cron"
	"github.com/ballast-sched/ballast/pkg/lock"
	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/maintenance"
	"github.com/ballast-sched/ballast/pkg/quota"
	"github.com/ballast-sched/ballast/pkg/recovery"
	"github.com/ballast-sched/ballast/pkg/statemachine"
	"github.com/ballast-sched/ballast/pkg/storage"
)

// Config wires a Server to the already-constructed components backing each
// concern. All fields are required except Version and Clock; a nil Clock
// defaults to the system clock.
type Config struct {
	Facade   *storage.Facade
	Host     *statemachine.Host
	Locks    *lock.Manager
	Quota    *quota.Checker
	Maint    *maintenance.Controller
	Recovery *recovery.Controller
	Cron     *cron.Scheduler
	Clock    clock.Clock
	Version  string
}

// Server implements the scheduler's external RPC surface: every method is a
// thin translation from a typed request into calls against the storage
// facade, lock manager, quota checker, maintenance controller, cron
// scheduler, and recovery controller, with internal errors translated to
// schederr response codes at the boundary.
//
// A Server never creates a brand-new task id without immediately calling
// host.Track in the same call that persists it — see pkg/cron's Scheduler
// for why that must happen synchronously rather than through the event
// broker.
type Server struct {
	facade   *storage.Facade
	host     *statemachine.Host
	locks    *lock.Manager
	quota    *quota.Checker
	maint    *maintenance.Controller
	recovery *recovery.Controller
	cron     *cron.Scheduler
	clk      clock.Clock
	version  string
	logger   zerolog.Logger
}

// New builds a Server from cfg.
func New(cfg Config) *Server {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Server{
		facade:   cfg.Facade,
		host:     cfg.Host,
		locks:    cfg.Locks,
		quota:    cfg.Quota,
		maint:    cfg.Maint,
		recovery: cfg.Recovery,
		cron:     cfg.Cron,
		clk:      clk,
		version:  cfg.Version,
		logger:   log.WithComponent("api"),
	}
}

// operation names, used both as dispatch table keys and as the "operation"
// label on api request metrics/logs.
const (
	opCreateJob           = "createJob"
	opReplaceCronTemplate = "replaceCronTemplate"
	opPopulateJobConfig   = "populateJobConfig"
	opStartCronJob        = "startCronJob"
	opAddInstances        = "addInstances"
	opGetTasksStatus      = "getTasksStatus"
	opGetJobs             = "getJobs"
	opGetRoleSummary      = "getRoleSummary"
	opGetQuota            = "getQuota"
	opGetVersion          = "getVersion"
	opKillTasks           = "killTasks"
	opRestartShards       = "restartShards"
	opForceTaskState      = "forceTaskState"
	opAcquireLock         = "acquireLock"
	opReleaseLock         = "releaseLock"
	opSetQuota            = "setQuota"
	opStartMaintenance    = "startMaintenance"
	opDrainHosts          = "drainHosts"
	opEndMaintenance      = "endMaintenance"
	opMaintenanceStatus   = "maintenanceStatus"
	opPerformBackup       = "performBackup"
	opListBackups         = "listBackups"
	opStageRecovery       = "stageRecovery"
	opQueryRecovery       = "queryRecovery"
	opDeleteRecoveryTasks = "deleteRecoveryTasks"
	opCommitRecovery      = "commitRecovery"
	opUnloadRecovery      = "unloadRecovery"
)

// BuildDispatcher registers every operation this Server implements into a
// fresh Dispatcher wrapped with DefaultMiddleware.
func (s *Server) BuildDispatcher() *Dispatcher {
	d := NewDispatcher(DefaultMiddleware(s.logger)...)

	d.Register(opCreateJob, wrapCreateJob(s), byRole(func(p any) string {
		return p.(CreateJobRequest).Job.Key.Role
	}), false)
	d.Register(opReplaceCronTemplate, wrapReplaceCronTemplate(s), byRole(func(p any) string {
		return p.(ReplaceCronTemplateRequest).Job.Key.Role
	}), false)
	d.Register(opPopulateJobConfig, wrapPopulateJobConfig(s), nil, false)
	d.Register(opStartCronJob, wrapStartCronJob(s), byRole(func(p any) string {
		return p.(StartCronJobRequest).Job.Role
	}), false)
	d.Register(opAddInstances, wrapAddInstances(s), byRole(func(p any) string {
		return p.(AddInstancesRequest).Job.Role
	}), false)

	d.Register(opGetTasksStatus, wrapGetTasksStatus(s), nil, false)
	d.Register(opGetJobs, wrapGetJobs(s), nil, false)
	d.Register(opGetRoleSummary, wrapGetRoleSummary(s), nil, false)
	d.Register(opGetQuota, wrapGetQuota(s), nil, false)
	d.Register(opGetVersion, wrapGetVersion(s), nil, false)

	d.Register(opKillTasks, wrapKillTasks(s), byRole(func(p any) string {
		return p.(KillTasksRequest).Query.Role
	}), false)
	d.Register(opRestartShards, wrapRestartShards(s), byRole(func(p any) string {
		return p.(RestartShardsRequest).Job.Role
	}), false)
	d.Register(opForceTaskState, wrapForceTaskState(s), nil, true)

	d.Register(opAcquireLock, wrapAcquireLock(s), byRole(func(p any) string {
		return p.(AcquireLockRequest).Key.Job.Role
	}), false)
	d.Register(opReleaseLock, wrapReleaseLock(s), byRole(func(p any) string {
		return p.(ReleaseLockRequest).Key.Job.Role
	}), false)

	d.Register(opSetQuota, wrapSetQuota(s), nil, true)

	d.Register(opStartMaintenance, wrapStartMaintenance(s), nil, true)
	d.Register(opDrainHosts, wrapDrainHosts(s), nil, true)
	d.Register(opEndMaintenance, wrapEndMaintenance(s), nil, true)
	d.Register(opMaintenanceStatus, wrapMaintenanceStatus(s), nil, false)

	d.Register(opPerformBackup, wrapPerformBackup(s), nil, true)
	d.Register(opListBackups, wrapListBackups(s), nil, true)
	d.Register(opStageRecovery, wrapStageRecovery(s), nil, true)
	d.Register(opQueryRecovery, wrapQueryRecovery(s), nil, true)
	d.Register(opDeleteRecoveryTasks, wrapDeleteRecoveryTasks(s), nil, true)
	d.Register(opCommitRecovery, wrapCommitRecovery(s), nil, true)
	d.Register(opUnloadRecovery, wrapUnloadRecovery(s), nil, true)

	return d
}

// byRole adapts a function picking the target role out of a concrete
// request's payload into the rolesFn signature Dispatcher.Register expects.
func byRole(pick func(any) string) func(Request) []string {
	return func(req Request) []string { return []string{pick(req.Payload)} }
}
