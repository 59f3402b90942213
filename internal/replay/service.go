package replay

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/notifyhub/notification-worker/internal/domain"
)

// MaxTags bounds a single replay request.
const MaxTags = 1000

// Loader reads archived payloads by consumer and delivery tag.
type Loader interface {
	Load(ctx context.Context, consumer int, tag uint64) ([]byte, error)
}

// Publisher puts a payload back on a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Status is the per-tag result of a replay.
type Status string

const (
	StatusRepublished Status = "republished"
	StatusNotFound    Status = "not_found"
	StatusFailed      Status = "failed"
)

// TagResult reports what happened to one delivery tag.
type TagResult struct {
	Tag    uint64 `json:"tag"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Result summarises a replay batch, in request order.
type Result struct {
	Tags        []TagResult `json:"tags"`
	Republished int         `json:"republished"`
}

// Service republishes archived payloads to the notification queue so that
// deliveries which were dropped or dead-lettered can be processed again.
type Service struct {
	loader    Loader
	publisher Publisher
	queue     string
	logger    *zap.Logger
}

func NewService(loader Loader, publisher Publisher, queue string, logger *zap.Logger) *Service {
	return &Service{loader: loader, publisher: publisher, queue: queue, logger: logger}
}

// Replay republishes the payloads archived by consumer under each tag, in
// order. A missing or failing tag is reported in the result and does not stop
// the batch. The payloads are published verbatim, undecodable ones included.
func (s *Service) Replay(ctx context.Context, consumer int, tags []uint64) (Result, error) {
	if len(tags) == 0 {
		return Result{}, domain.ErrNoTags
	}
	if len(tags) > MaxTags {
		return Result{}, domain.ErrTooManyTags
	}

	res := Result{Tags: make([]TagResult, 0, len(tags))}
	for _, tag := range tags {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		tr := s.replayOne(ctx, consumer, tag)
		if tr.Status == StatusRepublished {
			res.Republished++
		}
		res.Tags = append(res.Tags, tr)
	}

	s.logger.Info("replay finished",
		zap.Int("consumer_id", consumer),
		zap.Int("requested", len(tags)),
		zap.Int("republished", res.Republished),
	)
	return res, nil
}

func (s *Service) replayOne(ctx context.Context, consumer int, tag uint64) TagResult {
	body, err := s.loader.Load(ctx, consumer, tag)
	if errors.Is(err, domain.ErrArchiveNotFound) {
		s.logger.Warn("no archived payload for tag", zap.Uint64("delivery_tag", tag))
		return TagResult{Tag: tag, Status: StatusNotFound, Error: err.Error()}
	}
	if err != nil {
		s.logger.Error("failed to load archived payload", zap.Uint64("delivery_tag", tag), zap.Error(err))
		return TagResult{Tag: tag, Status: StatusFailed, Error: err.Error()}
	}

	if err := s.publisher.Publish(ctx, s.queue, body); err != nil {
		s.logger.Error("failed to republish payload", zap.Uint64("delivery_tag", tag), zap.Error(err))
		return TagResult{Tag: tag, Status: StatusFailed, Error: err.Error()}
	}
	return TagResult{Tag: tag, Status: StatusRepublished}
}
