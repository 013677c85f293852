package metrics

import "github.com/prometheus/client_golang/prometheus"

// Indexing Prometheus metrics.
var (
	NodesIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treedex",
			Name:      "nodes_indexed_total",
			Help:      "Total number of node variants routed to the store",
		},
		[]string{"operation"}, // "index" / "update" / "delete" / "skip"
	)

	BulkBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treedex",
			Name:      "bulk_batches_total",
			Help:      "Total number of bulk flushes",
		},
		[]string{"status"}, // "ok" / "error"
	)

	BulkOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treedex",
			Name:      "bulk_operations_total",
			Help:      "Total number of bulk operations by outcome",
		},
		[]string{"kind", "status"}, // status: "ok" / "error" / "dropped"
	)

	BulkFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "treedex",
			Name:      "bulk_flush_duration_seconds",
			Help:      "Bulk flush duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	AliasRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treedex",
			Name:      "alias_rotations_total",
			Help:      "Total number of alias rotations",
		},
		[]string{"status"}, // "ok" / "error"
	)

	StaleIndicesRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "treedex",
			Name:      "stale_indices_removed_total",
			Help:      "Total number of stale index generations removed",
		},
	)
)

var indexingMetricsRegistered bool

// RegisterIndexingMetrics registers Prometheus indexing metrics. Must be
// called once from main.
func RegisterIndexingMetrics() {
	if indexingMetricsRegistered {
		return
	}
	prometheus.MustRegister(NodesIndexedTotal)
	prometheus.MustRegister(BulkBatchesTotal)
	prometheus.MustRegister(BulkOperationsTotal)
	prometheus.MustRegister(BulkFlushDuration)
	prometheus.MustRegister(AliasRotationsTotal)
	prometheus.MustRegister(StaleIndicesRemovedTotal)
	indexingMetricsRegistered = true
}
