package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "energyhub"
	subsystem = "collector"
)

var (
	collectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "collections_total",
			Help:      "Collection attempts by source and outcome",
		},
		[]string{"source", "status"},
	)

	collectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "collection_duration_seconds",
			Help:      "Wall time of a collection attempt including retries",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"source"},
	)

	collectionAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "collection_attempts",
			Help:      "Remote calls made per collection attempt",
			Buckets:   []float64{1, 2, 3, 5, 8},
		},
		[]string{"source"},
	)

	collectionPoints = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "collection_points",
			Help:      "Data points returned by the last successful collection",
		},
		[]string{"source"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"source"},
	)

	blockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "blocked_total",
			Help:      "Collections refused by an open circuit breaker",
		},
		[]string{"source"},
	)
)

// ObserveCollection records the outcome of a finished collection attempt.
func ObserveCollection(source, status string, attempts int, duration time.Duration, points int) {
	collectionsTotal.WithLabelValues(source, status).Inc()
	collectionDuration.WithLabelValues(source).Observe(duration.Seconds())
	if attempts > 0 {
		collectionAttempts.WithLabelValues(source).Observe(float64(attempts))
	}
	if status == "success" || status == "partial" {
		collectionPoints.WithLabelValues(source).Set(float64(points))
	}
}

// IncBlocked counts a collection refused by the circuit breaker.
func IncBlocked(source string) {
	blockedTotal.WithLabelValues(source).Inc()
}

// SetBreakerState publishes the numeric breaker state.
func SetBreakerState(source string, state int) {
	breakerState.WithLabelValues(source).Set(float64(state))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
