package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/notifyhub/notification-worker/internal/domain"
	"github.com/notifyhub/notification-worker/internal/metrics"
)

func TestWorkerHooks(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	hooks := m.WorkerHooks()

	hooks.OnOutcome(domain.OutcomeDispatched, 10*time.Millisecond)
	hooks.OnOutcome(domain.OutcomeDispatched, 20*time.Millisecond)
	hooks.OnOutcome(domain.OutcomeArchived, time.Millisecond)
	hooks.OnDeadLetter()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("dispatched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("archived")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeadLettered))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ProcessingTime))
}

func TestRouterHook_BoundsUnknownChannels(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	onSend := m.RouterHook()

	onSend("email", domain.SendSent)
	onSend("sms", domain.SendUnrecognized)
	onSend("pigeon", domain.SendUnrecognized)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelSends.WithLabelValues("email", "sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChannelSends.WithLabelValues("unknown", "unrecognized")))
}
