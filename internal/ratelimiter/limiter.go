package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/notifyhub/notification-worker/internal/domain"
)

// ChannelLimiters holds one token bucket limiter per channel.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type ChannelLimiters struct {
	limiters map[domain.Channel]*rate.Limiter
}

// New creates limiters allowing ratePerSec sends per second on each channel.
func New(ratePerSec int, channels ...domain.Channel) *ChannelLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec

	limiters := make(map[domain.Channel]*rate.Limiter, len(channels))
	for _, ch := range channels {
		limiters[ch] = rate.NewLimiter(r, burst)
	}
	return &ChannelLimiters{limiters: limiters}
}

// Wait blocks until the channel's limiter grants a token.
// Channels without a limiter are not throttled.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (cl *ChannelLimiters) Wait(ctx context.Context, ch domain.Channel) error {
	l, ok := cl.limiters[ch]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}
