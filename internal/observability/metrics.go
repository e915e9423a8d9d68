// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buffonomics_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records repository latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "buffonomics_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// UpstreamRequests counts data provider calls by endpoint and outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buffonomics_upstream_requests_total",
		Help: "Total number of upstream data provider requests",
	}, []string{"endpoint", "outcome"})

	// UpstreamLatency records data provider latency by endpoint.
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "buffonomics_upstream_latency_seconds",
		Help:    "Upstream data provider latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"endpoint"})

	// CircuitBreakerState reports the breaker state per name (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "buffonomics_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	// ActiveSessions is the number of live sessions in the process-local store.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "buffonomics_active_sessions",
		Help: "Number of active sessions held in memory",
	})

	// SessionsSwept counts expired sessions removed by the sweeper.
	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buffonomics_sessions_swept_total",
		Help: "Total number of expired sessions removed by the sweeper",
	})

	// LoginAttempts counts login attempts by outcome.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buffonomics_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	}, []string{"outcome"})

	// ProfileLookups counts politician lookups by how they were served.
	ProfileLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buffonomics_profile_lookups_total",
		Help: "Total number of politician profile lookups by result",
	}, []string{"result"})
)

// Profile lookup results.
const (
	LookupCached   = "cached"
	LookupFetched  = "fetched"
	LookupFallback = "stale_fallback"
	LookupNotFound = "not_found"
	LookupFailed   = "failed"
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// ObserveUpstream records one upstream call.
func ObserveUpstream(endpoint, outcome string, start time.Time) {
	UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
