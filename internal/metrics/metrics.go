// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Marks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_marks_total",
		Help: "Attendance marks by outcome.",
	}, []string{"outcome"})

	DeletesCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_deletes_committed_total",
		Help: "Attendance removals sent to the store after the undo window, by result.",
	}, []string{"result"})

	Reconciles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_reconciles_total",
		Help: "Session refetches by result.",
	}, []string{"result"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rollcall_active_sessions",
		Help: "Meeting/date sessions held by this instance.",
	})

	FeedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_feed_events_total",
		Help: "Change feed events received, by type.",
	}, []string{"type"})

	DashboardRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_dashboard_refreshes_total",
		Help: "Dashboard cache rebuilds by result.",
	}, []string{"result"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rollcall_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Result maps an error to the "ok"/"error" label used by the counters above.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
