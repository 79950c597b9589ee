package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "court_notifier_runs_total",
			Help: "Total number of availability checks",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "court_notifier_run_duration_seconds",
			Help:    "Duration of one availability check in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)

	PagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "court_notifier_pages_fetched_total",
			Help: "Total number of schedule pages fetched",
		},
		[]string{"club", "status"},
	)

	RecordsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "court_notifier_records_dropped_total",
			Help: "Availability records that could not be used",
		},
		[]string{"reason"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "court_notifier_requests_total",
			Help: "Booking requests evaluated, by outcome",
		},
		[]string{"status"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "court_notifier_notifications_total",
			Help: "Telegram notifications sent",
		},
		[]string{"status"},
	)

	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "court_notifier_active_requests",
			Help: "Booking requests active in the last check",
		},
	)
)

func RecordRun(status string, seconds float64) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(seconds)
}

func RecordPage(club, status string) {
	PagesFetchedTotal.WithLabelValues(club, status).Inc()
}

func RecordDropped(reason string) {
	RecordsDroppedTotal.WithLabelValues(reason).Inc()
}

func RecordRequest(status string) {
	RequestsTotal.WithLabelValues(status).Inc()
}

func RecordNotification(status string) {
	NotificationsTotal.WithLabelValues(status).Inc()
}
