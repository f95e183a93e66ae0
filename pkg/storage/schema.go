package storage

import (
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/ballast-sched/ballast/pkg/types"
)

const (
	tableTasks       = "tasks"
	tableJobs        = "jobs"
	tableQuotas      = "quotas"
	tableLocks       = "locks"
	tableAttributes  = "attributes"
	tableMaintenance = "maintenance"
)

// taskRecord wraps a ScheduledTask with the flat string fields go-memdb's
// field indexers need; the stores convert to/from this on every call.
type taskRecord struct {
	Task   *types.ScheduledTask
	TaskID string
	JobKey string
	Status string
}

type jobRecord struct {
	Job  *types.JobConfiguration
	Key  string
	Role string
}

type quotaRecord struct {
	Quota *types.Quota
	Role  string
}

type lockRecord struct {
	Lock *types.Lock
	Key  string
}

type attributeRecord struct {
	Attrs *types.HostAttributes
	Host  string
}

type maintenanceRecord struct {
	Host string
	Mode string
}

func jobKeyString(key types.JobKey) string {
	return fmt.Sprintf("%s/%s/%s", key.Role, key.Environment, key.JobName)
}

func lockKeyString(key types.LockKey) string {
	return jobKeyString(key.Job)
}

func newSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableTasks: {
				Name: tableTasks,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "TaskID"},
					},
					"job": {
						Name:    "job",
						Indexer: &memdb.StringFieldIndex{Field: "JobKey"},
					},
					"status": {
						Name:    "status",
						Indexer: &memdb.StringFieldIndex{Field: "Status"},
					},
				},
			},
			tableJobs: {
				Name: tableJobs,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
					"role": {
						Name:    "role",
						Indexer: &memdb.StringFieldIndex{Field: "Role"},
					},
				},
			},
			tableQuotas: {
				Name: tableQuotas,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Role"},
					},
				},
			},
			tableLocks: {
				Name: tableLocks,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
				},
			},
			tableAttributes: {
				Name: tableAttributes,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Host"},
					},
				},
			},
			tableMaintenance: {
				Name: tableMaintenance,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Host"},
					},
				},
			},
		},
	}
}
