package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks curve generations by requested method and result.
	CurveGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldcurve_generations_total",
			Help: "Total number of curve generations (by requested method and result).",
		},
		[]string{"method", "result"}, // result = "ok" | "insufficient_data" | "error"
	)

	// Measures the full get-or-generate pipeline including persistence.
	CurveGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yieldcurve_generation_duration_seconds",
			Help:    "Duration of curve generation in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms → ~8s
		},
		[]string{"method"},
	)

	// Counts cubic requests fitted linearly because too few maturities were observed.
	CubicFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yieldcurve_cubic_fallbacks_total",
			Help: "Number of cubic requests that fell back to linear interpolation.",
		},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldcurve_store_operations_total",
			Help: "Curve store operations by operation and result.",
		},
		[]string{"op", "result"},
	)

	// Tracks curve read-cache hits and misses.
	CurveCacheAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldcurve_cache_access_total",
			Help: "Number of cache hits/misses in the curve read cache.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks events published by broker subject and result.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldcurve_events_published_total",
			Help: "Total number of curve events published.",
		},
		[]string{"subject", "result"},
	)

	EventPublishLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yieldcurve_event_publish_latency_seconds",
			Help:    "Time taken to publish curve events",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldcurve_errors_total",
			Help: "Count of service-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last successful generation time (seconds since epoch).
	LastGenerationTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "yieldcurve_last_generation_timestamp",
			Help: "Timestamp (unix seconds) of the last successful curve generation.",
		},
		[]string{"component"},
	)
)

// ObserveDuration records the time taken for a function and updates the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// counters carry no duration
	}
}

func IncGeneration(method, result string) {
	CurveGenerationsTotal.WithLabelValues(method, result).Inc()
}

func IncCubicFallback() {
	CubicFallbacksTotal.Inc()
}

func IncStoreOp(op, result string) {
	StoreOperations.WithLabelValues(op, result).Inc()
}

func IncCacheAccess(result string) {
	CurveCacheAccess.WithLabelValues(result).Inc()
}

func IncPublished(subject, result string) {
	EventsPublished.WithLabelValues(subject, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastGeneration(component string, t time.Time) {
	LastGenerationTimestamp.WithLabelValues(component).Set(float64(t.Unix()))
}
