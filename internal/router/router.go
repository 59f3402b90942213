package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/notifyhub/notification-worker/internal/channel"
	"github.com/notifyhub/notification-worker/internal/domain"
)

// CodeGenerator issues and stores a one-time code for a user.
type CodeGenerator interface {
	Generate(ctx context.Context, userID int64) (string, error)
}

// Senders resolves a destinations entry to a channel sender.
type Senders interface {
	Lookup(name string) (channel.Sender, bool)
}

// Limiter throttles sends per channel.
type Limiter interface {
	Wait(ctx context.Context, ch domain.Channel) error
}

// addressOf maps each known channel to the request field holding its address.
var addressOf = map[domain.Channel]func(*domain.NotificationRequest) *string{
	domain.ChannelEmail:    func(r *domain.NotificationRequest) *string { return r.Email },
	domain.ChannelWhatsApp: func(r *domain.NotificationRequest) *string { return r.PhoneNumber },
}

// Router resolves the content of a request and fans it out to the
// requested destinations, one at a time and in order.
type Router struct {
	otp     CodeGenerator
	senders Senders
	limiter Limiter
	logger  *zap.Logger

	onSend func(ch string, status domain.SendStatus)
}

// New constructs a Router. limiter and onSend are optional (nil = no-op).
func New(
	otp CodeGenerator,
	senders Senders,
	limiter Limiter,
	logger *zap.Logger,
	onSend func(ch string, status domain.SendStatus),
) *Router {
	if onSend == nil {
		onSend = func(string, domain.SendStatus) {}
	}
	return &Router{otp: otp, senders: senders, limiter: limiter, logger: logger, onSend: onSend}
}

// Route dispatches req. An error is returned only when the content could not
// be resolved (the OTP could not be stored); channel send failures are
// reported per destination in the outcome and never returned.
func (r *Router) Route(ctx context.Context, req *domain.NotificationRequest, log *zap.Logger) (domain.Outcome, error) {
	if log == nil {
		log = r.logger
	}

	content, ok, err := r.content(ctx, req)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !ok {
		log.Debug("no message for non-otp notification; nothing to send", zap.String("kind", string(req.Kind)))
		return domain.Outcome{Kind: domain.OutcomeDecoded, Request: req}, nil
	}

	report := domain.Report{Results: make([]domain.DestinationResult, 0, len(req.Destinations))}
	for _, name := range req.Destinations {
		res := r.dispatch(ctx, req, name, content, log)
		r.onSend(name, res.Status)
		report.Results = append(report.Results, res)
	}

	return domain.Outcome{Kind: domain.OutcomeDispatched, Request: req, Report: report}, nil
}

func (r *Router) content(ctx context.Context, req *domain.NotificationRequest) (string, bool, error) {
	if req.Kind == domain.KindOTP {
		code, err := r.otp.Generate(ctx, req.UserID)
		if err != nil {
			return "", false, fmt.Errorf("otp: %w", err)
		}
		return code, true, nil
	}
	if req.Message == nil {
		return "", false, nil
	}
	return *req.Message, true, nil
}

func (r *Router) dispatch(
	ctx context.Context,
	req *domain.NotificationRequest,
	name, content string,
	log *zap.Logger,
) domain.DestinationResult {
	res := domain.DestinationResult{Channel: name}

	sender, known := r.senders.Lookup(name)
	address, hasField := addressOf[domain.Channel(name)]
	if !known || !hasField {
		log.Warn("unrecognized destination", zap.String("destination", name))
		res.Status = domain.SendUnrecognized
		return res
	}

	to := address(req)
	if to == nil {
		log.Debug("destination address missing; skipping", zap.String("destination", name))
		res.Status = domain.SendSkipped
		return res
	}
	res.Destination = *to

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, domain.Channel(name)); err != nil {
			res.Status = domain.SendFailed
			res.Error = err.Error()
			return res
		}
	}

	if err := sender.Send(ctx, *to, content); err != nil {
		log.Warn("channel send failed", zap.String("destination", name), zap.Error(err))
		res.Status = domain.SendFailed
		res.Error = err.Error()
		return res
	}

	res.Status = domain.SendSent
	return res
}
