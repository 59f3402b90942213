package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Dead-letter headers attached to every message moved to the dead-letter queue.
const (
	HeaderReason      = "x-dispatch-failure"
	HeaderDeliveryTag = "x-original-delivery-tag"
	HeaderTraceID     = "x-trace-id"
	HeaderFailedAt    = "x-failed-at"
)

// ErrPublishNacked means the broker refused responsibility for a message.
var ErrPublishNacked = errors.New("broker nacked publish")

// Broker owns one AMQP connection. Every subscription gets its own channel;
// publishing (dead letters, replays) goes through a separate, mutex-guarded
// channel in confirm mode.
type Broker struct {
	conn *amqp.Connection

	mu    sync.Mutex
	pubCh *amqp.Channel
	// send publishes one message and reports whether the broker confirmed it.
	send func(ctx context.Context, queue string, msg amqp.Publishing) (bool, error)

	deadLetterQueue string
}

// Dial connects to the broker at url.
func Dial(url string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	b := &Broker{conn: conn, pubCh: ch}
	b.send = b.confirmedPublish
	return b, nil
}

// QueueOptions describes the queues the worker declares at startup.
type QueueOptions struct {
	Name    string
	Durable bool
	// DeadLetter is declared durable; empty disables the dead-letter path.
	DeadLetter string
}

// Declare declares the work queue (non-exclusive, non-auto-delete) and, if
// configured, the dead-letter queue. Declaring an existing queue with the
// same options only confirms it exists.
func (b *Broker) Declare(o QueueOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.pubCh.QueueDeclare(o.Name, o.Durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", o.Name, err)
	}
	if o.DeadLetter != "" {
		if _, err := b.pubCh.QueueDeclare(o.DeadLetter, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter queue %s: %w", o.DeadLetter, err)
		}
		b.deadLetterQueue = o.DeadLetter
	}
	return nil
}

// Subscription is one consumer registration on its own AMQP channel.
type Subscription struct {
	ch  *amqp.Channel
	tag string

	Deliveries <-chan amqp.Delivery
}

// Subscribe registers consumerTag on queue with manual acknowledgement.
// Prefetch is one so a consumer never holds more than the delivery it is
// processing.
func (b *Broker) Subscribe(queue, consumerTag string) (*Subscription, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return &Subscription{ch: ch, tag: consumerTag, Deliveries: deliveries}, nil
}

// Cancel stops the broker pushing new deliveries to this subscription. The
// channel stays open so deliveries already received can still be acked.
func (s *Subscription) Cancel() error {
	if err := s.ch.Cancel(s.tag, false); err != nil {
		return fmt.Errorf("cancel consumer %s: %w", s.tag, err)
	}
	return nil
}

// Close closes the subscription's channel. Unacked deliveries are requeued
// by the broker, so call it only once in-flight deliveries are settled.
func (s *Subscription) Close() error {
	if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("close consumer channel %s: %w", s.tag, err)
	}
	return nil
}

// DeadLetterEnabled reports whether a dead-letter queue was declared.
func (b *Broker) DeadLetterEnabled() bool {
	return b.deadLetterQueue != ""
}

// DeadLetter republishes the delivery body to the dead-letter queue with the
// failure reason in its headers.
func (b *Broker) DeadLetter(ctx context.Context, d amqp.Delivery, reason, traceID string) error {
	if b.deadLetterQueue == "" {
		return fmt.Errorf("dead-letter queue not configured")
	}
	msg := amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         d.Body,
		Headers: amqp.Table{
			HeaderReason:      reason,
			HeaderDeliveryTag: strconv.FormatUint(d.DeliveryTag, 10),
			HeaderTraceID:     traceID,
			HeaderFailedAt:    time.Now().UTC().Format(time.RFC3339),
		},
	}
	return b.publish(ctx, b.deadLetterQueue, msg)
}

// Publish sends body to queue through the default exchange.
func (b *Broker) Publish(ctx context.Context, queue string, body []byte) error {
	return b.publish(ctx, queue, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
}

// publish returns nil only once the broker has confirmed the message.
func (b *Broker) publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	acked, err := b.send(ctx, queue, msg)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("publish to %s: %w", queue, ErrPublishNacked)
	}
	return nil
}

func (b *Broker) confirmedPublish(ctx context.Context, queue string, msg amqp.Publishing) (bool, error) {
	dc, err := b.pubCh.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	if err != nil {
		return false, err
	}
	if dc == nil {
		return false, errors.New("publish channel is not in confirm mode")
	}
	return dc.WaitContext(ctx)
}

// NotifyClose returns a channel that receives the error when the connection
// drops. It is closed on a clean shutdown.
func (b *Broker) NotifyClose() <-chan *amqp.Error {
	return b.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (b *Broker) Close() error {
	b.mu.Lock()
	_ = b.pubCh.Close()
	b.mu.Unlock()
	return b.conn.Close()
}
