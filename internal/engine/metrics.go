package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	recordsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sobat_records_processed_total",
			Help: "Raw device records entering the pipeline",
		},
		[]string{"source"},
	)

	recordsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sobat_records_dropped_total",
			Help: "Records dropped at the normalizer (no resolvable coordinates)",
		},
	)

	changeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sobat_change_events_total",
			Help: "Material change events committed",
		},
		[]string{"source"},
	)

	historyWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sobat_history_writes_total",
			Help: "History rows written",
		},
	)

	historyWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sobat_history_write_failures_total",
			Help: "Failed history writes (non-fatal)",
		},
	)

	throttledWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sobat_throttled_writes_total",
			Help: "History writes skipped by the minor-change throttle",
		},
	)
)

func init() {
	prometheus.MustRegister(
		recordsProcessed,
		recordsDropped,
		changeEvents,
		historyWrites,
		historyWriteFailures,
		throttledWrites,
	)
}
