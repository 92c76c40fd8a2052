package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsProcessed tracks completed items by outcome (success/failure)
	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batcher_items_processed_total",
			Help: "Total number of items processed",
		},
		[]string{"outcome"},
	)

	// RetryAttempts tracks delayed retries by failure classification
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batcher_retry_attempts_total",
			Help: "Total number of delayed retry attempts",
		},
		[]string{"classification"},
	)

	// CheckpointSaves tracks checkpoint persistence attempts
	CheckpointSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batcher_checkpoint_saves_total",
			Help: "Total number of checkpoint save attempts",
		},
		[]string{"status"},
	)

	// ActiveRuns tracks batches currently executing in this process
	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "batcher_active_runs",
			Help: "Number of batch runs currently executing",
		},
	)

	// RunProgress tracks per-run completion ratio
	RunProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "batcher_run_progress_ratio",
			Help: "Fraction of items completed for a run",
		},
		[]string{"run_id"},
	)

	// ItemDuration tracks wall time per item including retries
	ItemDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batcher_item_duration_seconds",
			Help:    "Wall time spent processing one item, retries included",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)
)
