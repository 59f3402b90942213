package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/notification-worker/internal/store"
)

func newRedisStore(t *testing.T) (*store.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := store.NewRedisStore(context.Background(), "redis://"+mr.Addr()+"/0", store.RedisOptions{
		DialTimeout: time.Second,
		RWTimeout:   time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_SetWithoutExpiry(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "notification:1", []byte("raw\x00bytes"), 0))

	got, err := mr.Get("notification:1")
	require.NoError(t, err)
	assert.Equal(t, "raw\x00bytes", got)
	assert.Equal(t, time.Duration(0), mr.TTL("notification:1"))
}

func TestRedisStore_SetWithExpiry(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "otp:42", []byte("012345"), 300*time.Second))
	assert.Equal(t, 300*time.Second, mr.TTL("otp:42"))

	mr.FastForward(301 * time.Second)
	_, err := s.Get(ctx, "otp:42")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestRedisStore_SetOverwrites(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("first"), 0))
	require.NoError(t, s.Set(ctx, "k", []byte("second"), 0))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestRedisStore_GetMissing(t *testing.T) {
	s, _ := newRedisStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestRedisStore_SetError(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.SetError("ERR injected failure")

	err := s.Set(context.Background(), "k", []byte("v"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set k")
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := store.NewRedisStore(context.Background(), "redis://"+addr, store.RedisOptions{
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := store.NewRedisStore(context.Background(), "http://localhost", store.RedisOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}
