package channel

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/notification-worker/internal/domain"
)

// Sender delivers content to one destination over one medium.
// Implementations must be safe for sequential reuse; a non-nil error means
// the destination did not receive the content.
type Sender interface {
	Send(ctx context.Context, destination, content string) error
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func(ctx context.Context, destination, content string) error

func (f SenderFunc) Send(ctx context.Context, destination, content string) error {
	return f(ctx, destination, content)
}

// Registry is the closed set of channels the worker can dispatch to.
// It is built once at startup; a name that is not registered is unknown.
type Registry struct {
	senders map[domain.Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[domain.Channel]Sender)}
}

// Register binds ch to s, replacing any previous binding.
func (r *Registry) Register(ch domain.Channel, s Sender) *Registry {
	r.senders[ch] = s
	return r
}

// Lookup resolves a destinations entry to its sender.
func (r *Registry) Lookup(name string) (Sender, bool) {
	s, ok := r.senders[domain.Channel(name)]
	return s, ok
}

// Options selects how the built-in channels deliver.
type Options struct {
	// ProviderBaseURL, when set, routes every channel through WebhookSender.
	ProviderBaseURL string
	ProviderTimeout time.Duration
	Breaker         BreakerSettings
}

// DefaultRegistry registers email and WhatsApp, each behind its own breaker.
func DefaultRegistry(o Options, logger *zap.Logger) *Registry {
	r := NewRegistry()
	for _, ch := range []domain.Channel{domain.ChannelEmail, domain.ChannelWhatsApp} {
		var base Sender = NewLogSender(ch, logger)
		if o.ProviderBaseURL != "" {
			base = NewWebhookSender(o.ProviderBaseURL, ch, o.ProviderTimeout)
		}
		r.Register(ch, NewBreakerSender(ch, base, o.Breaker))
	}
	return r
}
