// Package metrics defines the Prometheus instrumentation surface shared
// across the scheduler core: storage, the scheduling loop, placement,
// preemption, maintenance, recovery, and the API dispatch layer each record
// into a handful of metrics here rather than rolling their own.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Storage metrics
	StorageWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballast_storage_write_duration_seconds",
			Help:    "Time taken to commit a transactional facade write, including the log append",
			Buckets: prometheus.DefBuckets,
		},
	)

	StorageReadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballast_storage_read_duration_seconds",
			Help:    "Time taken to service a transactional facade read",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ballast_storage_snapshots_total",
			Help: "Total number of snapshots written and logs truncated",
		},
	)

	LogRecordsReplayedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ballast_storage_log_records_replayed_total",
			Help: "Total number of log records replayed across all recoveries",
		},
	)

	// Task lifecycle metrics
	TasksByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ballast_tasks_total",
			Help: "Current number of tasks by status",
		},
		[]string{"status"},
	)

	IllegalTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_illegal_transitions_total",
			Help: "Total number of rejected state transition attempts by from/to status",
		},
		[]string{"from", "to"},
	)

	TaskFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_task_failures_total",
			Help: "Total number of tasks that reached FAILED, by role",
		},
		[]string{"role"},
	)

	// Scheduling loop metrics
	SchedulingAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_scheduling_attempts_total",
			Help: "Total number of scheduling attempts by outcome (placed, no_offer, error)",
		},
		[]string{"outcome"},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballast_scheduling_latency_seconds",
			Help:    "Time from a task entering PENDING to a successful placement",
			Buckets: prometheus.DefBuckets,
		},
	)

	TaskGroupsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ballast_task_groups_active",
			Help: "Current number of non-empty task groups in the scheduling queue",
		},
	)

	GroupBackoffSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballast_group_backoff_seconds",
			Help:    "Backoff duration applied to a task group after a failed scheduling attempt",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)

	RateLimiterWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballast_scheduler_rate_limiter_wait_seconds",
			Help:    "Time spent waiting for a global scheduling rate limiter permit",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Placement metrics
	PlacementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballast_placement_duration_seconds",
			Help:    "Time taken to evaluate offers and assign a task",
			Buckets: prometheus.DefBuckets,
		},
	)

	OffersConsideredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ballast_offers_considered_total",
			Help: "Total number of resource offers evaluated by the placement action",
		},
	)

	OffersRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_offers_rejected_total",
			Help: "Total number of resource offers rejected by reason (resources, constraint, maintenance)",
		},
		[]string{"reason"},
	)

	// Preemption metrics
	PreemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_preemptions_total",
			Help: "Total number of tasks preempted, by victim tier",
		},
		[]string{"victim_tier"},
	)

	PreemptionSearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballast_preemption_search_duration_seconds",
			Help:    "Time taken to search for a preemption victim",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Lock manager metrics
	LockContentionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ballast_lock_contention_total",
			Help: "Total number of lock acquisitions rejected because a lock was already held",
		},
	)

	LocksHeld = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ballast_locks_held",
			Help: "Current number of held job locks",
		},
	)

	// Quota metrics
	QuotaDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_quota_denied_total",
			Help: "Total number of admission checks denied for insufficient quota, by role",
		},
		[]string{"role"},
	)

	// Maintenance metrics
	HostsByMaintenanceMode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ballast_hosts_by_maintenance_mode",
			Help: "Current number of hosts by maintenance mode",
		},
		[]string{"mode"},
	)

	// Recovery / backup metrics
	BackupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballast_backup_duration_seconds",
			Help:    "Time taken to perform a full backup",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecoveryStageDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballast_recovery_stage_duration_seconds",
			Help:    "Time taken to stage a backup as the recovery snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	BackupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ballast_backups_total",
			Help: "Total number of backups performed",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_api_requests_total",
			Help: "Total number of scheduler API requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ballast_api_request_duration_seconds",
			Help:    "Scheduler API request duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		StorageWriteDuration,
		StorageReadDuration,
		SnapshotsTotal,
		LogRecordsReplayedTotal,
		TasksByStatus,
		IllegalTransitionsTotal,
		TaskFailuresTotal,
		SchedulingAttemptsTotal,
		SchedulingLatency,
		TaskGroupsActive,
		GroupBackoffSeconds,
		RateLimiterWaitDuration,
		PlacementDuration,
		OffersConsideredTotal,
		OffersRejectedTotal,
		PreemptionsTotal,
		PreemptionSearchDuration,
		LockContentionTotal,
		LocksHeld,
		QuotaDeniedTotal,
		HostsByMaintenanceMode,
		BackupDuration,
		RecoveryStageDuration,
		BackupsTotal,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall-clock time between NewTimer and an Observe*
// call, for recording into a histogram at the end of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer running.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration into a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
