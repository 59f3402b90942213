package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/notifyhub/notification-worker/internal/domain"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnOutcome    func(kind domain.OutcomeKind, latency time.Duration)
	OnDeadLetter func()
}

// Subscription is the broker side of one feed. Cancel stops new deliveries
// but keeps the channel open so in-flight deliveries can still be settled;
// Close releases the channel.
type Subscription interface {
	Cancel() error
	Close() error
}

// Pool runs one consumer per delivery feed. Each feed comes from its own
// AMQP channel, so consumers never share a channel handle; the store client
// and dead-letter publisher are safe for concurrent use.
type Pool struct {
	consumers []*Consumer
	feeds     []<-chan amqp.Delivery
	logger    *zap.Logger
	wg        sync.WaitGroup
	cancel    context.CancelFunc

	lost     chan struct{}
	lostOnce sync.Once
}

// NewPool creates len(feeds) consumers sharing deps.
func NewPool(
	feeds []<-chan amqp.Delivery,
	deps Deps,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	consumers := make([]*Consumer, len(feeds))
	for i := range consumers {
		consumers[i] = NewConsumer(
			i, deps,
			logger.With(zap.Int("consumer_id", i)),
			hooks.OnOutcome,
			hooks.OnDeadLetter,
		)
	}
	return &Pool{
		consumers: consumers,
		feeds:     feeds,
		logger:    logger,
		cancel:    func() {},
		lost:      make(chan struct{}),
	}
}

// Start launches all consumers as goroutines.
// Cancelling ctx stops every consumer after its in-flight delivery.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i, c := range p.consumers {
		p.wg.Add(1)
		go func(c *Consumer, feed <-chan amqp.Delivery) {
			defer p.wg.Done()
			if err := c.Run(ctx, feed); errors.Is(err, ErrFeedClosed) {
				p.lostOnce.Do(func() { close(p.lost) })
			}
		}(c, p.feeds[i])
	}
}

// Lost is closed when any consumer stops because the broker closed its feed.
// The worker cannot recover the subscription in place and should exit.
func (p *Pool) Lost() <-chan struct{} {
	return p.lost
}

// Wait blocks until every consumer has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Drain stops the pool without losing acknowledgements: consumers stop
// taking deliveries, the broker stops pushing new ones, in-flight deliveries
// are settled, and only then are the subscription channels closed.
func (p *Pool) Drain(subs ...Subscription) {
	p.cancel()
	for _, s := range subs {
		if err := s.Cancel(); err != nil {
			p.logger.Warn("failed to cancel subscription", zap.Error(err))
		}
	}
	p.wg.Wait()
	for _, s := range subs {
		if err := s.Close(); err != nil {
			p.logger.Warn("failed to close subscription channel", zap.Error(err))
		}
	}
}
