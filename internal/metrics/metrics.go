// Package metrics exposes the core's operational counters as Prometheus
// collectors, in the style of the pack's qBittorrent stall-reannounce
// counter: package-level promauto collectors registered once at import
// time, read by /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksDispatched counts successful backend.AddTask calls, labeled by
	// backend name.
	TasksDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlcore_tasks_dispatched_total",
			Help: "Number of tasks successfully handed to a backend via add_task.",
		},
		[]string{"backend"},
	)

	// TasksFallenBack counts fallback rotations to a new backend, labeled
	// by the backend that failed.
	TasksFallenBack = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlcore_tasks_fallback_total",
			Help: "Number of times a task rotated away from a failed backend.",
		},
		[]string{"from_backend"},
	)

	// TasksRetried counts Downloading -> Retrying transitions.
	TasksRetried = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlcore_tasks_retried_total",
			Help: "Number of times a task was scheduled for retry after an observed failure.",
		},
	)

	// TasksFailed counts terminal Failed transitions.
	TasksFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlcore_tasks_failed_total",
			Help: "Number of tasks that reached the terminal Failed state.",
		},
	)

	// TasksCompleted counts terminal Completed transitions.
	TasksCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlcore_tasks_completed_total",
			Help: "Number of tasks that reached the terminal Completed state.",
		},
	)

	// TasksVanished counts tasks the syncer declared vanished from their
	// backend after the grace period.
	TasksVanished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlcore_tasks_vanished_total",
			Help: "Number of tasks reported as failed after vanishing from their backend past the grace period.",
		},
	)

	// ActorQueueDepth reports the Worker Actor's current inbound queue
	// length, sampled on each Send.
	ActorQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlcore_actor_queue_depth",
			Help: "Current number of Tx messages queued for the Worker Actor.",
		},
	)

	// SyncDuration observes how long a single Status Syncer tick takes.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dlcore_sync_tick_duration_seconds",
			Help:    "Duration of a single Status Syncer reconciliation tick.",
			Buckets: prometheus.DefBuckets,
		},
	)
)
