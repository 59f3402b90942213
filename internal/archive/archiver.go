package archive

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/notifyhub/notification-worker/internal/domain"
	"github.com/notifyhub/notification-worker/internal/store"
)

// Archiver keeps the raw bytes of every consumed message for audit and replay.
// Records never expire. Delivery tags are numbered per broker channel, so keys
// are scoped by consumer; a reconnect can still overwrite an older record
// under the same key.
type Archiver struct {
	store store.Store
}

func New(s store.Store) *Archiver {
	return &Archiver{store: s}
}

// Key returns notification:<tag> for the first consumer and
// notification:<consumer>:<tag> for every other one, since each consumer
// owns a channel whose delivery tags start again at 1.
func Key(consumer int, tag uint64) string {
	if consumer == 0 {
		return "notification:" + strconv.FormatUint(tag, 10)
	}
	return "notification:" + strconv.Itoa(consumer) + ":" + strconv.FormatUint(tag, 10)
}

// Archive writes body verbatim. It must run before the payload is decoded.
func (a *Archiver) Archive(ctx context.Context, consumer int, tag uint64, body []byte) error {
	if err := a.store.Set(ctx, Key(consumer, tag), body, 0); err != nil {
		return fmt.Errorf("archive payload: %w", err)
	}
	return nil
}

// Load returns the payload archived by consumer under tag.
func (a *Archiver) Load(ctx context.Context, consumer int, tag uint64) ([]byte, error) {
	b, err := a.store.Get(ctx, Key(consumer, tag))
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrArchiveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load archived payload: %w", err)
	}
	return b, nil
}
