package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	TransfersExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrunner_transfers_total",
		Help: "The total number of payout transfers by chain and status",
	}, []string{"chain_id", "status"})

	TransferProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payrunner_transfer_processing_seconds",
		Help:    "Time taken to execute payout transfers",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s with 10 buckets doubling in size
	}, []string{"chain_id"})

	SwapsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrunner_swaps_total",
		Help: "The total number of shortfall-cure swaps by status",
	}, []string{"status"})

	BridgesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrunner_bridges_total",
		Help: "The total number of consolidation bridges by status",
	}, []string{"status"})

	ShortfallsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrunner_shortfalls_total",
		Help: "Shortfall detections by token",
	}, []string{"token"})

	GroupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrunner_group_runs_total",
		Help: "Payment group runs by result",
	}, []string{"result"})

	GroupRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payrunner_group_run_seconds",
		Help:    "Time taken to run a payment group end to end",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	ObligationsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrunner_obligations_skipped_total",
		Help: "Obligations skipped before any transfer attempt",
	}, []string{"reason"})

	PersistenceWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payrunner_persistence_warnings_total",
		Help: "Ledger writes that failed after a successful transfer",
	})

	ReconciledIntents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrunner_reconciled_intents_total",
		Help: "Intent records correlated with ledger rows",
	}, []string{"status"})

	PendingGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payrunner_pending_groups",
		Help: "The number of payment groups waiting to be processed",
	})
)
