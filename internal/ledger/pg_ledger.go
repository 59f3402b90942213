package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/notification-worker/internal/domain"
)

type pgLedger struct {
	pool *pgxpool.Pool
}

// NewPgLedger returns a Ledger backed by the dispatch_ledger table.
func NewPgLedger(pool *pgxpool.Pool) Ledger {
	return &pgLedger{pool: pool}
}

func (l *pgLedger) Record(ctx context.Context, e Entry) error {
	results := e.Results
	if results == nil {
		results = []domain.DestinationResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	var kind *string
	if e.Kind != "" {
		k := string(e.Kind)
		kind = &k
	}

	_, err = l.pool.Exec(ctx, `
		INSERT INTO dispatch_ledger
			(delivery_tag, trace_id, consumer_id, outcome, settlement, reason,
			 user_id, kind, results, duration_ms, processed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		int64(e.DeliveryTag), e.TraceID, e.ConsumerID, string(e.Outcome), string(e.Settlement), e.Reason,
		e.UserID, kind, resultsJSON, e.Duration.Milliseconds(), e.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

var _ Ledger = (*pgLedger)(nil)
