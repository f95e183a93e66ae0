/*
Package metrics defines and registers every Prometheus metric exposed by the
scheduler core, and the small Timer helper used to record them.

# Catalog

Storage:

  - ballast_storage_write_duration_seconds — Facade.Write latency, including
    the log append.
  - ballast_storage_read_duration_seconds — Facade.Read latency.
  - ballast_storage_snapshots_total — snapshots written and logs truncated.
  - ballast_storage_log_records_replayed_total — records replayed across
    recoveries.

Task lifecycle:

  - ballast_tasks_total{status} — current task count by status.
  - ballast_illegal_transitions_total{from,to} — rejected transition
    attempts.
  - ballast_task_failures_total{role} — tasks that reached FAILED.

Scheduling loop:

  - ballast_scheduling_attempts_total{outcome}
  - ballast_scheduling_latency_seconds — PENDING to placement.
  - ballast_task_groups_active
  - ballast_group_backoff_seconds
  - ballast_scheduler_rate_limiter_wait_seconds

Placement:

  - ballast_placement_duration_seconds
  - ballast_offers_considered_total
  - ballast_offers_rejected_total{reason}

Preemption:

  - ballast_preemptions_total{victim_tier}
  - ballast_preemption_search_duration_seconds

Lock manager / quota:

  - ballast_lock_contention_total
  - ballast_locks_held
  - ballast_quota_denied_total{role}

Maintenance:

  - ballast_hosts_by_maintenance_mode{mode}

Recovery / backup:

  - ballast_backup_duration_seconds
  - ballast_recovery_stage_duration_seconds
  - ballast_backups_total

API:

  - ballast_api_requests_total{operation,outcome}
  - ballast_api_request_duration_seconds{operation}

# Usage

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StorageWriteDuration)

	metrics.TasksByStatus.WithLabelValues("RUNNING").Set(42)
	metrics.PreemptionsTotal.WithLabelValues("preemptible").Inc()

# Collector

Collector (collector.go) periodically samples the transactional facade for
the gauges that can't be updated at the point of mutation — per-status task
counts and per-mode host counts — since those require scanning the full
table rather than incrementing at a single call site.

# Exposition

Handler() returns the standard promhttp handler for mounting at /metrics.
HealthHandler, ReadyHandler, and LivenessHandler (health.go) serve
operator-facing /health, /ready, and /live endpoints independent of
Prometheus scraping.
*/
package metrics
