package api

import (
	"github.com/ballast-sched/ballast/pkg/schederr"
	"github.com/ballast-sched/ballast/pkg/types"
)

// Credential is the session identity presented with every mutating RPC.
// Admin bypasses the per-role check but every use of that bypass is logged
// by authMiddleware.
type Credential struct {
	Identity string
	Roles    []string
	Admin    bool
}

// HasRole reports whether c is authorized to act on role, either because it
// holds that role directly or because it carries admin capability.
func (c Credential) HasRole(role string) bool {
	if c.Admin {
		return true
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Response is the envelope every scheduler API operation returns: a response
// code plus an operator-safe message, and whatever payload the operation
// produces.
type Response struct {
	Code    schederr.ResponseCode `json:"responseCode"`
	Message string                `json:"message,omitempty"`
	Data    any                   `json:"data,omitempty"`
}

// ok builds a Response carrying data with responseCode OK.
func ok(message string, data any) *Response {
	return &Response{Code: schederr.ResponseOK, Message: message, Data: data}
}

// warn builds a Response carrying data with responseCode WARNING: the
// operation made partial progress but some part of it failed.
func warn(message string, data any) *Response {
	return &Response{Code: schederr.ResponseWarning, Message: message, Data: data}
}

// TaskStatusQuery filters the task set for getTasksStatus and is reused by
// killTasks/restartShards to select the tasks a mutating operation targets.
type TaskStatusQuery struct {
	Role        string
	Environment string
	JobName     string
	TaskIDs     []string
	Statuses    []types.TaskStatus
}

func (q TaskStatusQuery) matches(t *types.ScheduledTask) bool {
	if q.Role != "" && t.Role != q.Role {
		return false
	}
	if q.Environment != "" && t.Environment != q.Environment {
		return false
	}
	if q.JobName != "" && t.JobName != q.JobName {
		return false
	}
	if len(q.TaskIDs) > 0 && !containsString(q.TaskIDs, t.TaskID) {
		return false
	}
	if len(q.Statuses) > 0 && !containsStatus(q.Statuses, t.Status) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsStatus(haystack []types.TaskStatus, needle types.TaskStatus) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// CreateJobRequest is the payload for createJob.
type CreateJobRequest struct {
	Job        types.JobConfiguration
	TaskConfig types.TaskConfig
	LockToken  string
}

// ReplaceCronTemplateRequest is the payload for replaceCronTemplate.
type ReplaceCronTemplateRequest struct {
	Job       types.JobConfiguration
	LockToken string
}

// PopulateJobConfigRequest is the payload for populateJobConfig. It is a
// pure operation: no storage is touched, defaults are simply applied and
// returned.
type PopulateJobConfigRequest struct {
	TaskConfig     types.TaskConfig
	ValidationMode string
}

// StartCronJobRequest is the payload for startCronJob.
type StartCronJobRequest struct {
	Job types.JobKey
}

// KillTasksRequest is the payload for killTasks.
type KillTasksRequest struct {
	Query     TaskStatusQuery
	LockToken string
}

// RestartShardsRequest is the payload for restartShards.
type RestartShardsRequest struct {
	Job         types.JobKey
	InstanceIDs []int
	LockToken   string
}

// AddInstancesRequest is the payload for addInstances.
type AddInstancesRequest struct {
	Job         types.JobKey
	InstanceIDs []int
	TaskConfig  types.TaskConfig
	LockToken   string
}

// AcquireLockRequest is the payload for acquireLock.
type AcquireLockRequest struct {
	Key types.LockKey
}

// ReleaseLockRequest is the payload for releaseLock.
type ReleaseLockRequest struct {
	Token string
	Key   types.LockKey
}

// SetQuotaRequest is the payload for setQuota.
type SetQuotaRequest struct {
	Quota types.Quota
}

// ForceTaskStateRequest is the payload for forceTaskState.
type ForceTaskStateRequest struct {
	TaskID string
	Status types.TaskStatus
}

// HostsRequest is the shared payload shape for the maintenance lifecycle
// operations, all of which act on a set of hosts.
type HostsRequest struct {
	Hosts []string
}

// RecoveryQueryRequest is the payload for queryRecovery.
type RecoveryQueryRequest struct {
	Job      *types.JobKey
	Statuses []types.TaskStatus
}

// StageRecoveryRequest is the payload for stageRecovery.
type StageRecoveryRequest struct {
	BackupID string
}

// DeleteRecoveryTasksRequest is the payload for deleteRecoveryTasks.
type DeleteRecoveryTasksRequest struct {
	TaskIDs []string
}
