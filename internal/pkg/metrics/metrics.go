// Package metrics defines the Prometheus collectors shared across the
// gateway: HTTP-level metrics recorded by middleware and domain counters
// recorded by services and background jobs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gld_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gld_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// MeteredCallsAdmitted counts metered API calls admitted past the quota ledger.
	MeteredCallsAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gld_metered_calls_admitted_total",
			Help: "Total metered API calls admitted",
		},
	)

	// QuotaRejections counts calls rejected because the daily quota was exhausted.
	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gld_quota_rejections_total",
			Help: "Total calls rejected by the daily quota ledger",
		},
		[]string{"plan"},
	)

	// AuthFailures counts metered-surface authentication failures.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gld_auth_failures_total",
			Help: "Total API key authentication failures",
		},
		[]string{"reason"},
	)

	// PaymentsApproved counts payments confirmed by the reconciler.
	PaymentsApproved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gld_payments_approved_total",
			Help: "Total payments approved, by target plan",
		},
		[]string{"plan"},
	)

	// PlanDowngrades counts expiry-driven downgrades to the free plan.
	PlanDowngrades = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gld_plan_downgrades_total",
			Help: "Total plan downgrades performed by the expiration sweep",
		},
		[]string{"from_plan"},
	)

	// SweepRuns counts background sweep executions by job and outcome.
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gld_sweep_runs_total",
			Help: "Total background sweep runs",
		},
		[]string{"job", "outcome"},
	)

	// RequestLogFailures counts audit entries that could not be persisted.
	RequestLogFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gld_request_log_failures_total",
			Help: "Total request log entries dropped due to write failures",
		},
	)
)
