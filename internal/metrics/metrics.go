package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/notification-worker/internal/domain"
	"github.com/notifyhub/notification-worker/internal/worker"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	Deliveries     *prometheus.CounterVec
	ChannelSends   *prometheus.CounterVec
	ProcessingTime *prometheus.HistogramVec
	DeadLettered   prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Deliveries handled, by outcome.",
		}, []string{"outcome"}),

		ChannelSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_channel_sends_total",
			Help: "Per-destination dispatch attempts, by channel and status.",
		}, []string{"channel", "status"}),

		ProcessingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_processing_seconds",
			Help:    "Time from receiving a delivery to settling it.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),

		DeadLettered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_dead_lettered_total",
			Help: "Deliveries moved to the dead-letter queue.",
		}),
	}

	reg.MustRegister(
		m.Deliveries,
		m.ChannelSends,
		m.ProcessingTime,
		m.DeadLettered,
	)

	return m
}

// WorkerHooks returns the callbacks expected by worker.NewPool.
func (m *Metrics) WorkerHooks() worker.MetricHooks {
	return worker.MetricHooks{
		OnOutcome: func(kind domain.OutcomeKind, latency time.Duration) {
			m.Deliveries.WithLabelValues(string(kind)).Inc()
			m.ProcessingTime.WithLabelValues(string(kind)).Observe(latency.Seconds())
		},
		OnDeadLetter: func() {
			m.DeadLettered.Inc()
		},
	}
}

// RouterHook returns the per-destination callback expected by router.New.
// Unrecognized destination names are folded into one label value so the
// channel label stays bounded.
func (m *Metrics) RouterHook() func(ch string, status domain.SendStatus) {
	return func(ch string, status domain.SendStatus) {
		if status == domain.SendUnrecognized {
			ch = "unknown"
		}
		m.ChannelSends.WithLabelValues(ch, string(status)).Inc()
	}
}
