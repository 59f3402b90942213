package archive_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/notification-worker/internal/archive"
	"github.com/notifyhub/notification-worker/internal/domain"
	"github.com/notifyhub/notification-worker/internal/store"
)

func TestArchive_WritesVerbatimWithoutExpiry(t *testing.T) {
	s := store.NewMemoryStore()
	a := archive.New(s)

	body := []byte("\xff\xfe not json")
	require.NoError(t, a.Archive(context.Background(), 0, 17, body))

	e, ok := s.Lookup("notification:17")
	require.True(t, ok)
	assert.Equal(t, body, e.Value)
	assert.Equal(t, time.Duration(0), e.TTL)
}

func TestArchive_SameTagOverwrites(t *testing.T) {
	s := store.NewMemoryStore()
	a := archive.New(s)
	ctx := context.Background()

	require.NoError(t, a.Archive(ctx, 0, 1, []byte("before reconnect")))
	require.NoError(t, a.Archive(ctx, 0, 1, []byte("after reconnect")))

	got, err := a.Load(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "after reconnect", string(got))
}

func TestArchive_StoreFailure(t *testing.T) {
	s := store.NewMemoryStore()
	s.SetErr = errors.New("read-only replica")

	err := archive.New(s).Archive(context.Background(), 0, 1, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive payload")
}

func TestLoad_Missing(t *testing.T) {
	_, err := archive.New(store.NewMemoryStore()).Load(context.Background(), 0, 99)
	assert.True(t, errors.Is(err, domain.ErrArchiveNotFound))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "notification:0", archive.Key(0, 0))
	assert.Equal(t, "notification:18446744073709551615", archive.Key(0, ^uint64(0)))
	assert.Equal(t, "notification:2:7", archive.Key(2, 7))
}

func TestArchive_ConsumersDoNotShareKeys(t *testing.T) {
	s := store.NewMemoryStore()
	a := archive.New(s)
	ctx := context.Background()

	require.NoError(t, a.Archive(ctx, 0, 1, []byte("A")))
	require.NoError(t, a.Archive(ctx, 1, 1, []byte("B")))

	got, err := a.Load(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", string(got))
	got, err = a.Load(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "B", string(got))
}
