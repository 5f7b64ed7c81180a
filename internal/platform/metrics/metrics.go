// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics exposes Prometheus instrumentation for the auth core.
//
// # Scope
//
// Besides generic HTTP throughput/latency, the package tracks the security
// outcomes operations teams alert on: failed logins, refresh-token reuse,
// authorization denials, rate-limit rejections, and — critically — audit
// write failures, which are a compliance incident rather than a warning.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// # HTTP Metrics

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// # Security Metrics

var (
	// AuthAttempts counts authentication attempts by outcome
	// ("success", "invalid_credentials", "rate_limited").
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Authentication attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// TokenRotations counts refresh-token rotations by outcome
	// ("rotated", "reuse_detected", "expired", "invalid").
	TokenRotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_rotations_total",
			Help: "Refresh token rotations by outcome.",
		},
		[]string{"outcome"},
	)

	// AuthzDenials counts RBAC denials by resource and action.
	AuthzDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denials_total",
			Help: "Authorization denials by resource and action.",
		},
		[]string{"resource", "action"},
	)

	// RateLimitDenials counts throttled requests by limit class.
	RateLimitDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_denials_total",
			Help: "Rate-limited requests by class.",
		},
		[]string{"class"},
	)

	// RateLimitStoreFailures counts shared-counter-store errors by the
	// direction the limiter failed in ("open", "closed").
	RateLimitStoreFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_store_failures_total",
			Help: "Shared counter store failures by fail direction taken.",
		},
		[]string{"mode"},
	)

	// AuditWriteFailures counts audit entries that could not be persisted.
	// Any non-zero value must page: a dropped audit entry is a compliance
	// violation, not best-effort loss.
	AuditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Audit log entries that failed to persist.",
		},
	)
)

// Init registers all collectors with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		AuthAttempts,
		TokenRotations,
		AuthzDenials,
		RateLimitDenials,
		RateLimitStoreFailures,
		AuditWriteFailures,
	)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps an HTTP handler with throughput, latency, and in-flight
// tracking. Paths are deliberately not a label to keep cardinality bounded.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		httpInFlight.Inc()
		startTime := time.Now()

		recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}
		next.ServeHTTP(recorder, request)

		duration := time.Since(startTime).Seconds()
		status := strconv.Itoa(recorder.status)

		httpRequestDuration.WithLabelValues(request.Method, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(request.Method, status).Inc()
		httpInFlight.Dec()
	})
}

// statusRecorder captures the response status code for labelling.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}
