// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignInAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_signin_attempts_total",
			Help: "Total number of sign-in attempts by outcome",
		},
		[]string{"outcome"},
	)

	RoleResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_role_resolutions_total",
			Help: "Total number of backend role lookups by outcome",
		},
		[]string{"outcome"},
	)

	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_poll_ticks_total",
			Help: "Total number of notification poll ticks by result",
		},
		[]string{"result"},
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "notify_poll_duration_seconds",
			Help: "Duration of notification snapshot fetches in seconds",
		},
	)

	MarkReadCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_mark_read_total",
			Help: "Total number of mark-read calls by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	UnreadNotifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_unread_count",
			Help: "Unread notification count from the latest snapshot",
		},
	)
)

// Poll tick results.
const (
	TickCompleted = "completed"
	TickSkipped   = "skipped"
	TickDegraded  = "degraded"
	TickFailed    = "failed"
	TickStale     = "stale"
)
