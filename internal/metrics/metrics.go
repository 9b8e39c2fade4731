// Package metrics provides Prometheus metrics collection for the server.
//
// The package exposes metrics at /metrics for monitoring:
//
// Request Metrics:
//   - nebulafs_requests_total: Total requests by operation and status
//   - nebulafs_request_duration_seconds: Request latency histogram
//
// Storage Metrics:
//   - nebulafs_objects_total: Total objects per bucket
//   - nebulafs_buckets_total: Total number of buckets
//
// Use with Prometheus and Grafana for monitoring dashboards.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts total number of requests by S3 operation and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulafs_requests_total",
			Help: "Total number of requests",
		},
		[]string{"method", "operation", "status"},
	)

	// RequestDuration tracks request duration in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebulafs_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "operation"},
	)

	// ObjectsTotal tracks total number of objects per bucket.
	ObjectsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebulafs_objects_total",
			Help: "Total number of objects per bucket",
		},
		[]string{"bucket"},
	)

	// BucketsTotal tracks total number of buckets.
	BucketsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nebulafs_buckets_total",
			Help: "Total number of buckets",
		},
	)

	// ActiveConnections tracks number of in-flight HTTP requests.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nebulafs_active_connections",
			Help: "Number of active connections",
		},
	)

	// ErrorsTotal counts error responses by operation and error type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebulafs_errors_total",
			Help: "Total number of error responses",
		},
		[]string{"operation", "error_type"},
	)
)

// IncrementActiveConnections increments the in-flight request gauge.
func IncrementActiveConnections() {
	ActiveConnections.Inc()
}

// DecrementActiveConnections decrements the in-flight request gauge.
func DecrementActiveConnections() {
	ActiveConnections.Dec()
}

// RecordRequest records a completed request's status and duration.
func RecordRequest(method, operation string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, operation, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, operation).Observe(duration.Seconds())
}

// RecordError records an error response by operation and error type.
func RecordError(operation, errorType string) {
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}
