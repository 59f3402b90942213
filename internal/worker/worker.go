package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/notifyhub/notification-worker/internal/domain"
	"github.com/notifyhub/notification-worker/internal/ledger"
)

// ErrFeedClosed is returned by Run when the broker closes the delivery channel
// while the consumer is still meant to be running.
var ErrFeedClosed = errors.New("delivery feed closed")

// Archiver stores the raw bytes of a delivery before anything else happens.
// Delivery tags are only unique per consumer, so the consumer id is part of
// the archive key.
type Archiver interface {
	Archive(ctx context.Context, consumer int, tag uint64, body []byte) error
}

// Router resolves and fans out a decoded request.
type Router interface {
	Route(ctx context.Context, req *domain.NotificationRequest, log *zap.Logger) (domain.Outcome, error)
}

// DeadLetterer moves a delivery that could not be handled to a side queue.
type DeadLetterer interface {
	DeadLetterEnabled() bool
	DeadLetter(ctx context.Context, d amqp.Delivery, reason, traceID string) error
}

// Deps are the collaborators shared by every consumer in a pool.
// DeadLetter and Ledger are optional.
type Deps struct {
	Archiver   Archiver
	Router     Router
	DeadLetter DeadLetterer
	Ledger     ledger.Ledger
}

// Consumer handles the deliveries of one subscription strictly one at a time:
// archive, decode, route, record, settle. Each delivery is settled exactly
// once, with an ack or, if dead-lettering fails, a requeueing nack.
type Consumer struct {
	id     int
	deps   Deps
	logger *zap.Logger

	// Metric hooks, injected by the pool.
	onOutcome    func(kind domain.OutcomeKind, latency time.Duration)
	onDeadLetter func()
}

// NewConsumer constructs a consumer. onOutcome and onDeadLetter are optional (nil = no-op).
func NewConsumer(
	id int,
	deps Deps,
	logger *zap.Logger,
	onOutcome func(domain.OutcomeKind, time.Duration),
	onDeadLetter func(),
) *Consumer {
	if deps.Ledger == nil {
		deps.Ledger = ledger.Nop{}
	}
	if onOutcome == nil {
		onOutcome = func(domain.OutcomeKind, time.Duration) {}
	}
	if onDeadLetter == nil {
		onDeadLetter = func() {}
	}
	return &Consumer{
		id: id, deps: deps, logger: logger,
		onOutcome: onOutcome, onDeadLetter: onDeadLetter,
	}
}

// Run blocks until ctx is cancelled or the delivery channel closes.
// A delivery already being processed when ctx is cancelled is finished first.
// It returns ErrFeedClosed if the channel closed before ctx was cancelled.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	c.logger.Info("consumer started", zap.Int("id", c.id))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", zap.Int("id", c.id))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("delivery channel closed by broker", zap.Int("id", c.id))
				return ErrFeedClosed
			}
			c.process(context.WithoutCancel(ctx), d)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	start := time.Now()
	traceID := uuid.NewString()
	log := c.logger.With(
		zap.Uint64("delivery_tag", d.DeliveryTag),
		zap.String("trace_id", traceID),
	)

	outcome := c.handle(ctx, d, log)
	settled := c.settle(ctx, d, traceID, outcome, log)
	elapsed := time.Since(start)

	if err := c.deps.Ledger.Record(ctx, ledger.NewEntry(d.DeliveryTag, traceID, c.id, outcome, settled, elapsed)); err != nil {
		log.Error("failed to record ledger entry", zap.Error(err))
	}
	c.onOutcome(outcome.Kind, elapsed)

	log.Info("delivery handled",
		zap.String("outcome", string(outcome.Kind)),
		zap.String("settlement", string(settled)),
		zap.Int("sent", outcome.Report.Count(domain.SendSent)),
		zap.Int("failed", outcome.Report.Count(domain.SendFailed)),
		zap.Duration("latency", elapsed),
	)
}

// handle runs the per-delivery pipeline and never returns an error: every
// failure is folded into the outcome.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, log *zap.Logger) domain.Outcome {
	// Archive first so payloads that fail to decode are still recoverable.
	if err := c.deps.Archiver.Archive(ctx, c.id, d.DeliveryTag, d.Body); err != nil {
		log.Error("failed to archive payload", zap.Error(err))
		return domain.Failed(err.Error())
	}

	req, err := domain.DecodeRequest(d.Body)
	if err != nil {
		log.Warn("failed to parse notification message",
			zap.Error(err),
			zap.Int("payload_bytes", len(d.Body)),
		)
		return domain.Outcome{Kind: domain.OutcomeArchived, Reason: err.Error()}
	}

	log = log.With(zap.Int64("user_id", req.UserID), zap.String("kind", string(req.Kind)))
	out, err := c.deps.Router.Route(ctx, req, log)
	if err != nil {
		log.Error("failed to resolve notification content", zap.Error(err))
		o := domain.Failed(err.Error())
		o.Request = req
		return o
	}
	return out
}

// settle acks or nacks d exactly once and reports what was done.
func (c *Consumer) settle(ctx context.Context, d amqp.Delivery, traceID string, o domain.Outcome, log *zap.Logger) domain.Settlement {
	settled := domain.SettledAck
	if domain.Decide(o) == domain.ActionDeadLetter {
		switch {
		case c.deps.DeadLetter == nil || !c.deps.DeadLetter.DeadLetterEnabled():
			log.Error("delivery failed and no dead-letter queue is configured; dropping",
				zap.String("reason", o.Reason))
			settled = domain.SettledDropped
		default:
			if err := c.deps.DeadLetter.DeadLetter(ctx, d, o.Reason, traceID); err != nil {
				log.Error("dead-letter publish failed; requeueing delivery", zap.Error(err))
				if err := d.Nack(false, true); err != nil {
					log.Error("failed to nack delivery", zap.Error(err))
				}
				return domain.SettledRequeue
			}
			c.onDeadLetter()
			log.Warn("delivery dead-lettered", zap.String("reason", o.Reason))
			settled = domain.SettledDeadLetter
		}
	}

	if err := d.Ack(false); err != nil {
		log.Error("failed to acknowledge delivery", zap.Error(err))
	}
	return settled
}
