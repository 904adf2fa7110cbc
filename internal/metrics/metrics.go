// Package metrics expone los contadores Prometheus del subsistema.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts por resultado: success | failure
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authd",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	TokenVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authd",
		Name:      "token_verifications_total",
		Help:      "Token verifications by result.",
	}, []string{"result"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authd",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the rate limiter, per scope.",
	}, []string{"scope"})

	IsolationViolations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "authd",
		Name:      "tenant_isolation_violations_total",
		Help:      "Detected cross-tenant access attempts or response leaks.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authd",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "authd",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)
