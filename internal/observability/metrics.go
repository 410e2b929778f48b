package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CourtshipTransitions counts successful courtship state changes.
	CourtshipTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtside_courtship_transitions_total",
		Help: "Courtship state transitions by operation and resulting kind",
	}, []string{"operation", "kind"})

	// CourtshipRejections counts transition attempts refused by the protocol.
	CourtshipRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtside_courtship_rejections_total",
		Help: "Courtship operations rejected by error code",
	}, []string{"operation", "code"})

	// VisibilityDecisions counts access decisions by resource and outcome.
	VisibilityDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtside_visibility_decisions_total",
		Help: "Visibility decisions by resource and outcome",
	}, []string{"resource", "outcome"})

	// VisibilityLookupErrors counts storage failures that forced a deny.
	VisibilityLookupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtside_visibility_lookup_errors_total",
		Help: "Storage errors during visibility resolution (resolved as deny)",
	})

	// HandleGenerationAttempts records how many candidates a handle needed.
	HandleGenerationAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courtside_handle_generation_attempts",
		Help:    "Candidates tried before a unique handle was found",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
	})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courtside_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordDecision counts one visibility decision.
func RecordDecision(resource string, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	VisibilityDecisions.WithLabelValues(resource, outcome).Inc()
}
