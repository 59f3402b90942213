package channel

import (
	"context"

	"go.uber.org/zap"

	"github.com/notifyhub/notification-worker/internal/domain"
)

// LogSender stands in for a carrier integration: it records what would have
// been sent and always succeeds. Used for email and WhatsApp until a real
// provider is configured.
type LogSender struct {
	channel domain.Channel
	logger  *zap.Logger
}

func NewLogSender(ch domain.Channel, logger *zap.Logger) *LogSender {
	return &LogSender{channel: ch, logger: logger.With(zap.String("channel", string(ch)))}
}

func (s *LogSender) Send(_ context.Context, destination, content string) error {
	s.logger.Info("sending notification",
		zap.String("to", destination),
		zap.Int("content_length", len(content)),
	)
	return nil
}

var _ Sender = (*LogSender)(nil)
