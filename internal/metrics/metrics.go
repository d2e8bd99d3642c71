package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "gas_alert"
	subsystem = "engine"
)

// Metrics collected by the alert engine and the telegram bot
type Metrics struct {
	TicksTotal             prometheus.Counter
	TicksSkipped           prometheus.Counter
	TickDuration           prometheus.Histogram
	OracleCalls            *prometheus.CounterVec
	AlertsFired            *prometheus.CounterVec
	NotificationsDelivered prometheus.Counter
	NotificationsFailed    prometheus.Counter
	StoreErrors            *prometheus.CounterVec
	PanicsRecovered        *prometheus.CounterVec
	CommandsProcessed      prometheus.Counter
}

// New creates the metrics and registers them with reg. A nil reg leaves them
// unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		TicksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ticks_total",
			Help:      "The total number of evaluation passes started",
		}),
		TicksSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ticks_skipped_total",
			Help:      "Passes skipped because no chain had outstanding alerts",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_duration_seconds",
			Help:      "Time taken by one evaluation pass",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		OracleCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "oracle_calls_total",
			Help:      "Fee oracle calls by chain and outcome",
		}, []string{"chain", "outcome"}), // outcome: ok, network, upstream
		AlertsFired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alerts_fired_total",
			Help:      "Alerts whose threshold was reached",
		}, []string{"chain"}),
		NotificationsDelivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_delivered_total",
			Help:      "Notifications delivered to users",
		}),
		NotificationsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_failed_total",
			Help:      "Notifications that could not be delivered and will be retried",
		}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_errors_total",
			Help:      "Alert store failures by operation",
		}, []string{"op"}),
		PanicsRecovered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "panics_recovered_total",
			Help:      "Total number of panics recovered",
		}, []string{"component"}),
		CommandsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram_bot",
			Name:      "commands_processed",
			Help:      "The total number of processed commands",
		}),
	}
}
