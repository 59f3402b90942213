package ledger

import (
	"context"
	"time"

	"github.com/notifyhub/notification-worker/internal/domain"
)

// Entry is one settled delivery as seen by the consumer.
type Entry struct {
	DeliveryTag uint64
	TraceID     string
	ConsumerID  int
	Outcome     domain.OutcomeKind
	Settlement  domain.Settlement
	Reason      string
	UserID      *int64
	Kind        domain.Kind
	Results     []domain.DestinationResult
	Duration    time.Duration
	ProcessedAt time.Time
}

// NewEntry builds the ledger row for an outcome settled as s.
func NewEntry(tag uint64, traceID string, consumerID int, o domain.Outcome, s domain.Settlement, elapsed time.Duration) Entry {
	e := Entry{
		DeliveryTag: tag,
		TraceID:     traceID,
		ConsumerID:  consumerID,
		Outcome:     o.Kind,
		Settlement:  s,
		Reason:      o.Reason,
		Results:     o.Report.Results,
		Duration:    elapsed,
		ProcessedAt: time.Now().UTC(),
	}
	if o.Request != nil {
		uid := o.Request.UserID
		e.UserID = &uid
		e.Kind = o.Request.Kind
	}
	return e
}

// Ledger records what happened to every delivery, including which
// destinations were sent, so failed destinations can be identified later.
// The pgx implementation is in pg_ledger.go; tests use MemoryLedger.
type Ledger interface {
	Record(ctx context.Context, e Entry) error
}

// Nop discards entries. Used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
