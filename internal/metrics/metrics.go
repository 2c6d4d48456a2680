// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spinsight_http_responses_total",
		Help: "The total number of responses by method and status code",
	}, []string{"method", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spinsight_http_request_duration_seconds",
		Help:    "The request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spinsight_login_attempts_total",
		Help: "Login attempts by outcome",
	}, []string{"status"})

	CodeVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spinsight_code_verifications_total",
		Help: "One-time code verifications by purpose and outcome",
	}, []string{"purpose", "status"})

	CodeRequestsLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spinsight_code_requests_limited_total",
		Help: "Code requests rejected by the request limiter",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spinsight_notifications_total",
		Help: "Outbound notifications by kind and outcome",
	}, []string{"kind", "status"})

	SessionsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spinsight_sessions_issued_total",
		Help: "Sessions issued",
	})

	SessionsRevokedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spinsight_sessions_revoked_total",
		Help: "Sessions revoked by cause",
	}, []string{"cause"})

	ReaperSweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spinsight_reaper_sweeps_total",
		Help: "Reaper sweep steps by step and outcome",
	}, []string{"step", "status"})

	DashboardDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spinsight_dashboard_compute_seconds",
		Help:    "Time spent computing dashboard stats",
		Buckets: prometheus.DefBuckets,
	})
)
