package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the portal.
type Metrics struct {
	LoginsSucceeded     prometheus.Counter
	LoginsFailed        prometheus.Counter
	SessionsVerified    prometheus.Counter
	SessionsRejected    prometheus.Counter
	UpdatesSubmitted    prometheus.Counter
	UpdatesRequested    prometheus.Counter
	UpdatesPublished    prometheus.Counter
	UpdatesRejected     prometheus.Counter
	ThrottleDenials     prometheus.Counter
	RateLimitDenials    *prometheus.CounterVec
	AdminAuthFailures   prometheus.Counter
	OverdueSponsorships prometheus.Gauge
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics with reg. Tests pass a fresh registry
// so repeated construction cannot collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_logins_succeeded_total",
			Help: "Sponsor logins that produced a session.",
		}),
		LoginsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_logins_failed_total",
			Help: "Sponsor logins rejected for bad credentials.",
		}),
		SessionsVerified: factory.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_sessions_verified_total",
			Help: "Session cookies that passed the live sponsorship re-check.",
		}),
		SessionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_sessions_rejected_total",
			Help: "Session cookies rejected as absent, expired, or orphaned.",
		}),
		UpdatesSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_updates_submitted_total",
			Help: "Field-team update submissions accepted for review.",
		}),
		UpdatesRequested: factory.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_updates_requested_total",
			Help: "Sponsor-initiated update requests accepted.",
		}),
		UpdatesPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_updates_published_total",
			Help: "Updates published by the review team.",
		}),
		UpdatesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_updates_rejected_total",
			Help: "Updates rejected by the review team.",
		}),
		ThrottleDenials: factory.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_request_throttle_denials_total",
			Help: "Update requests denied by the per-sponsorship cooldown.",
		}),
		RateLimitDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sponsorlink_rate_limit_denials_total",
			Help: "Requests denied by the per-endpoint rate limiter.",
		}, []string{"class"}),
		AdminAuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_admin_auth_failures_total",
			Help: "Admin requests rejected for a bad or missing token.",
		}),
		OverdueSponsorships: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sponsorlink_overdue_sponsorships",
			Help: "Children whose latest published update is past the overdue threshold.",
		}),
	}
}
