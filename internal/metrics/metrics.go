package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes
const (
	OutcomeComplete     = "complete"
	OutcomeAcknowledged = "acknowledged"
	OutcomeFailed       = "failed"
	OutcomeDropped      = "dropped"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// JobsSubmittedTotal counts accepted submissions per routed vendor
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_jobs_submitted_total",
			Help: "Total number of jobs accepted by the submission gateway.",
		},
		[]string{"vendor"},
	)

	// JobsDispatchedTotal counts dispatcher outcomes
	JobsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_jobs_dispatched_total",
			Help: "Total number of queue entries handled by the dispatcher.",
		},
		[]string{"vendor", "outcome"},
	)

	// RateLimitDeniedTotal counts denied rate limit polls
	RateLimitDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_rate_limit_denied_total",
			Help: "Total number of rate limit polls that were denied.",
		},
		[]string{"vendor"},
	)

	// WebhooksTotal counts vendor callbacks by result
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_webhooks_total",
			Help: "Total number of vendor webhook callbacks received.",
		},
		[]string{"vendor", "result"},
	)

	// VendorCallDuration observes outbound vendor call latency
	VendorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendor_call_duration_seconds",
			Help:    "Latency of outbound vendor calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"vendor"},
	)
)
