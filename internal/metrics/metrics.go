// Package metrics provides Prometheus metrics for retrieval-engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts streamed queries by terminal state.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retrieval",
			Name:      "queries_total",
			Help:      "Total number of streamed queries by terminal state",
		},
		[]string{"state"},
	)

	// QueryPhaseDuration measures per-phase latency of the query stream.
	QueryPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retrieval",
			Name:      "query_phase_duration_seconds",
			Help:      "Duration of each query stream phase in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"phase"},
	)

	// DegradedQueriesTotal counts queries that completed with a zeroed or
	// skipped ranking term.
	DegradedQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "retrieval",
			Name:      "degraded_queries_total",
			Help:      "Total number of queries completed in degraded mode",
		},
	)

	// IngestTotal counts document and chunk upserts by outcome.
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retrieval",
			Name:      "ingest_total",
			Help:      "Total number of ingestion operations",
		},
		[]string{"kind", "outcome"},
	)

	// FeedbackEventsTotal counts accepted interaction events by type.
	FeedbackEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retrieval",
			Name:      "feedback_events_total",
			Help:      "Total number of accepted interaction events",
		},
		[]string{"event_type"},
	)

	// SnapshotRefreshDuration measures the engagement aggregation pass.
	SnapshotRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "retrieval",
			Name:      "snapshot_refresh_duration_seconds",
			Help:      "Duration of engagement snapshot refresh passes in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// IndexStrategy reports the strategy serving each vector field
	// (1 for the active strategy, 0 otherwise).
	IndexStrategy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "retrieval",
			Name:      "index_strategy",
			Help:      "Active ANN strategy per vector field (1 = active)",
		},
		[]string{"field", "strategy"},
	)

	// RerankFailuresTotal counts rerank calls that timed out or errored.
	RerankFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "retrieval",
			Name:      "rerank_failures_total",
			Help:      "Total number of failed rerank model calls",
		},
	)
)

// RecordQuery records a finished query stream.
func RecordQuery(state string, degraded bool) {
	QueriesTotal.WithLabelValues(state).Inc()
	if degraded {
		DegradedQueriesTotal.Inc()
	}
}

// RecordPhase records one phase of a query stream.
func RecordPhase(phase string, seconds float64) {
	QueryPhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordIngest records an ingestion operation.
func RecordIngest(kind, outcome string) {
	IngestTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordFeedback records an accepted interaction event.
func RecordFeedback(eventType string) {
	FeedbackEventsTotal.WithLabelValues(eventType).Inc()
}

// SetIndexStrategy marks the active strategy for a field.
func SetIndexStrategy(field, strategy string, active bool) {
	v := 0.0
	if active {
		v = 1.0
	}
	IndexStrategy.WithLabelValues(field, strategy).Set(v)
}
