package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/notifyhub/notification-worker/internal/domain"
)

// BreakerSettings configures the per-channel circuit breaker.
type BreakerSettings struct {
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
}

// BreakerSender fails fast with domain.ErrCircuitOpen once the wrapped sender
// has failed MaxConsecutiveFailures times in a row, until OpenTimeout passes.
type BreakerSender struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerSender(ch domain.Channel, next Sender, s BreakerSettings) *BreakerSender {
	maxFailures := s.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        string(ch),
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	})
	return &BreakerSender{next: next, breaker: cb}
}

func (b *BreakerSender) Send(ctx context.Context, destination, content string) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, destination, content)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", domain.ErrCircuitOpen, b.breaker.Name())
	}
	return err
}

// State exposes the breaker state for logs and tests.
func (b *BreakerSender) State() gobreaker.State {
	return b.breaker.State()
}

var _ Sender = (*BreakerSender)(nil)
