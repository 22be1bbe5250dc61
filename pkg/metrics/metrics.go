package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records admin and portal authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ashport_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"realm", "result"},
	)

	// VerificationDecisions counts admin review outcomes (approved|declined).
	VerificationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ashport_verification_decisions_total",
			Help: "Total number of verification review decisions",
		},
		[]string{"outcome"},
	)

	// StatusChecks counts resubmissions created through the status-check flow.
	StatusChecks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ashport_status_checks_total",
			Help: "Total number of verification status checks",
		},
	)

	// SubscriptionActivations counts TOTP-gated activation attempts by result.
	SubscriptionActivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ashport_subscription_activations_total",
			Help: "Total number of subscription activation attempts",
		},
		[]string{"result"},
	)

	// ImageUploads counts image host operations by result (success|failure).
	ImageUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ashport_image_uploads_total",
			Help: "Total number of image host upload attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ashport_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
