// Package metrics provides Prometheus metrics collection for the broker.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Global metrics - used by the application
	// Using atomic.Pointer for lock-free initialization checks on hot path metrics.
	requestsTotal         atomic.Pointer[prometheus.CounterVec]
	requestDuration       atomic.Pointer[prometheus.HistogramVec]
	tokensIssuedTotal     atomic.Pointer[prometheus.CounterVec]
	issuanceFailuresTotal atomic.Pointer[prometheus.CounterVec]
	authFailuresTotal     atomic.Pointer[prometheus.CounterVec]
)

// Init initializes all Prometheus metrics and registers them with the provided registry.
// This should be called once at application startup.
func Init(reg prometheus.Registerer) error {
	// HTTP request counter: tracks all requests by method, path (normalized), and status code
	requestsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docstore",
			Subsystem: "broker",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the broker",
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestsTotalVec); err != nil {
		return fmt.Errorf("failed to register requestsTotal: %w", err)
	}

	// Request duration histogram: tracks latency distribution
	requestDurationVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docstore",
			Subsystem: "broker",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestDurationVec); err != nil {
		return fmt.Errorf("failed to register requestDuration: %w", err)
	}

	// Issued token counter: one increment per token, labeled by container
	tokensIssuedTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docstore",
			Subsystem: "broker",
			Name:      "tokens_issued_total",
			Help:      "Total number of scoped tokens issued, by container",
		},
		[]string{"container"},
	)
	if err := reg.Register(tokensIssuedTotalVec); err != nil {
		return fmt.Errorf("failed to register tokensIssuedTotal: %w", err)
	}

	// Issuance failure counter, labeled by classified failure kind
	issuanceFailuresTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docstore",
			Subsystem: "broker",
			Name:      "issuance_failures_total",
			Help:      "Total number of failed issuance sequences, by failure kind",
		},
		[]string{"kind"},
	)
	if err := reg.Register(issuanceFailuresTotalVec); err != nil {
		return fmt.Errorf("failed to register issuanceFailuresTotal: %w", err)
	}

	// Auth failures counter: tracks failed admin authentication attempts
	authFailuresTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docstore",
			Subsystem: "broker",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)
	if err := reg.Register(authFailuresTotalVec); err != nil {
		return fmt.Errorf("failed to register authFailuresTotal: %w", err)
	}

	// Info gauge: static metric with constant label values for build info
	infoGaugeVec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docstore",
			Subsystem: "broker",
			Name:      "info",
			Help:      "Broker version and build information",
		},
		[]string{"version"},
	)
	infoGaugeInstance := infoGaugeVec.WithLabelValues("1.0.0")
	if err := reg.Register(infoGaugeVec); err != nil {
		return fmt.Errorf("failed to register infoGauge: %w", err)
	}
	infoGaugeInstance.Set(1)

	// Store metrics in atomics for lock-free access in record functions
	requestsTotal.Store(requestsTotalVec)
	requestDuration.Store(requestDurationVec)
	tokensIssuedTotal.Store(tokensIssuedTotalVec)
	issuanceFailuresTotal.Store(issuanceFailuresTotalVec)
	authFailuresTotal.Store(authFailuresTotalVec)

	return nil
}

// RecordRequest increments the requests counter for the given method, path, and status code.
// The path should be normalized (e.g., "/admin/api/tokens/:id" instead of "/admin/api/tokens/7").
func RecordRequest(method, path, statusCode string) {
	if counter := requestsTotal.Load(); counter != nil {
		counter.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordRequestDuration records the latency for a request.
// Duration should be in seconds.
func RecordRequestDuration(method, path, statusCode string, durationSeconds float64) {
	if histogram := requestDuration.Load(); histogram != nil {
		histogram.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
	}
}

// RecordTokenIssued increments the issued token counter for a container.
func RecordTokenIssued(container string) {
	if counter := tokensIssuedTotal.Load(); counter != nil {
		counter.WithLabelValues(container).Inc()
	}
}

// RecordIssuanceFailure increments the issuance failure counter for a
// classified failure kind ("auth", "connectivity", "remote", "unknown").
func RecordIssuanceFailure(kind string) {
	if counter := issuanceFailuresTotal.Load(); counter != nil {
		counter.WithLabelValues(kind).Inc()
	}
}

// RecordAuthFailure increments the auth failures counter for the given reason.
// Common reasons: "invalid_token", "missing_token", "master_key_locked"
func RecordAuthFailure(reason string) {
	if counter := authFailuresTotal.Load(); counter != nil {
		counter.WithLabelValues(reason).Inc()
	}
}

// Handler returns an HTTP handler for Prometheus metrics in text format.
// This handler should be registered at /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GetMetricsText returns the Prometheus text-format output from a registry.
// This is useful for testing and debugging.
func GetMetricsText(reg prometheus.Gatherer) (string, error) {
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	// Use httptest to capture the handler output
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	body, err := io.ReadAll(w.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metrics output: %w", err)
	}

	return string(body), nil
}
