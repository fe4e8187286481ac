package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the delivery pipeline instruments.
type Metrics struct {
	NotificationsSent    prometheus.Counter
	NotificationsRetried prometheus.Counter
	NotificationsFailed  *prometheus.CounterVec
	AuditWriteFailures   prometheus.Counter
	StorageFailures      *prometheus.CounterVec
	SweepDuration        prometheus.Histogram
	SweepSelected        prometheus.Gauge
	CleanupDeleted       prometheus.Counter
	RemindersScheduled   prometheus.Counter
}

// New creates the metrics and registers them with reg. A nil reg leaves them
// unregistered, which is what tests want.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications accepted by the push transport",
		}),
		NotificationsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_retried_total",
			Help:      "Failed deliveries re-queued with backoff",
		}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Notifications moved to the failed state",
		}, []string{"reason"}),
		AuditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_log_write_failures_total",
			Help:      "Delivery audit entries that could not be stored",
		}),
		StorageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_failures_total",
			Help:      "Status updates that failed in the notification store",
		}, []string{"operation"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Time spent processing due notifications",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		SweepSelected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sweep_selected",
			Help:      "Due notifications selected by the last sweep",
		}),
		CleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_deleted_total",
			Help:      "Terminal notifications purged past retention",
		}),
		RemindersScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_scheduled_total",
			Help:      "Attendance reminders created from timetables",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.NotificationsSent,
			m.NotificationsRetried,
			m.NotificationsFailed,
			m.AuditWriteFailures,
			m.StorageFailures,
			m.SweepDuration,
			m.SweepSelected,
			m.CleanupDeleted,
			m.RemindersScheduled,
		)
	}
	return m
}
