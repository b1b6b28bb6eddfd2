package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntriesTotal tracks the size of the last loaded or saved table.
	// Labels: level (errors, contexts, actions)
	EntriesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "qrepair",
			Subsystem: "knowledge",
			Name:      "entries",
			Help:      "Number of stored keys per table level after the last load or save",
		},
		[]string{"level"},
	)

	// LoadSkippedTotal counts malformed nodes skipped while loading.
	LoadSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qrepair",
			Subsystem: "knowledge",
			Name:      "load_skipped_total",
			Help:      "Total number of malformed nodes skipped while loading knowledge documents",
		},
	)

	// PersistDuration tracks how long load and save take.
	// Labels: op (load, save)
	PersistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "qrepair",
			Subsystem: "knowledge",
			Name:      "persist_duration_seconds",
			Help:      "Duration of knowledge load and save operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// updateSizeMetrics publishes the table size gauges.
func updateSizeMetrics(s Stats) {
	EntriesTotal.WithLabelValues("errors").Set(float64(s.Errors))
	EntriesTotal.WithLabelValues("contexts").Set(float64(s.Contexts))
	EntriesTotal.WithLabelValues("actions").Set(float64(s.Actions))
}
