package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("key not found")

// Store is the minimal key-value capability the worker needs.
// A zero ttl stores the value without expiry.
// The redis implementation is in redis_store.go; tests use MemoryStore.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Ping(ctx context.Context) error
	Close() error
}
