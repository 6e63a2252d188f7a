package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ContributionsWrittenTotal counts contribution documents written.
	ContributionsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "azul",
			Name:      "contributions_written_total",
			Help:      "Contribution documents written, by entity type",
		},
		[]string{"entity_type"},
	)

	// ContributionConflictsTotal counts create-only writes that found the
	// document already present (expected under redelivery).
	ContributionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "azul",
			Name:      "contribution_conflicts_total",
			Help:      "Contribution writes that hit an existing document",
		},
	)

	// AggregatesWrittenTotal counts aggregate documents written or deleted.
	AggregatesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "azul",
			Name:      "aggregates_written_total",
			Help:      "Aggregate documents written, by entity type",
		},
		[]string{"entity_type"},
	)

	// AggregateRetriesTotal counts version-conflict retries of aggregation.
	AggregateRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "azul",
			Name:      "aggregate_retries_total",
			Help:      "Aggregate writes retried after a version conflict",
		},
	)

	// TalliesReferredTotal counts tallies aggregated immediately.
	TalliesReferredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "azul",
			Name:      "tallies_referred_total",
			Help:      "Tally messages aggregated on first sight",
		},
	)

	// TalliesConsolidatedTotal counts tallies merged and re-enqueued.
	TalliesConsolidatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "azul",
			Name:      "tallies_consolidated_total",
			Help:      "Tally messages consolidated into a deferred tally",
		},
	)

	// AggregationDuration observes the latency of one entity aggregation.
	AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "azul",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of one entity aggregation (read, fold, write)",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// NewAggregationTimer times one entity aggregation; call ObserveDuration
// when done.
func NewAggregationTimer() *prometheus.Timer {
	return prometheus.NewTimer(AggregationDuration)
}

func init() {
	prometheus.MustRegister(
		ContributionsWrittenTotal,
		ContributionConflictsTotal,
		AggregatesWrittenTotal,
		AggregateRetriesTotal,
		TalliesReferredTotal,
		TalliesConsolidatedTotal,
		AggregationDuration,
	)
}
