package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/notifyhub/notification-worker/internal/api"
	"github.com/notifyhub/notification-worker/internal/archive"
	"github.com/notifyhub/notification-worker/internal/metrics"
	"github.com/notifyhub/notification-worker/internal/replay"
	"github.com/notifyhub/notification-worker/internal/store"
)

type nopPublisher struct{ bodies []string }

func (p *nopPublisher) Publish(_ context.Context, _ string, body []byte) error {
	p.bodies = append(p.bodies, string(body))
	return nil
}

const adminToken = "s3cret"

func postReplay(t *testing.T, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/admin/replay", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func newServer(t *testing.T, st *store.MemoryStore, logger *zap.Logger) (*httptest.Server, *nopPublisher) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.New(reg).DeadLettered.Inc()
	pub := &nopPublisher{}
	svc := replay.NewService(archive.New(st), pub, "notifications", logger)
	srv := httptest.NewServer(api.NewRouter(st, svc, adminToken, reg, logger))
	t.Cleanup(srv.Close)
	return srv, pub
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t, store.NewMemoryStore(), zap.NewNop())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
}

func TestReady(t *testing.T) {
	srv, _ := newServer(t, store.NewMemoryStore(), zap.NewNop())

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := store.NewMemoryStore()
	down.PingErr = errors.New("connection refused")
	srv, _ = newServer(t, down, zap.NewNop())
	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newServer(t, store.NewMemoryStore(), zap.NewNop())

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "notification_dead_lettered_total 1")
}

func TestReplayEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, archive.New(st).Archive(context.Background(), 0, 3, []byte(`{"user_id":3}`)))
	srv, pub := newServer(t, st, zap.NewNop())

	resp := postReplay(t, srv.URL, adminToken, `{"tags":[3,4]}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res replay.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, 1, res.Republished)
	require.Len(t, res.Tags, 2)
	assert.Equal(t, replay.StatusNotFound, res.Tags[1].Status)
	assert.Equal(t, []string{`{"user_id":3}`}, pub.bodies)
}

func TestReplayEndpoint_BadRequests(t *testing.T) {
	srv, _ := newServer(t, store.NewMemoryStore(), zap.NewNop())

	resp := postReplay(t, srv.URL, adminToken, `{`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postReplay(t, srv.URL, adminToken, `{"tags":[]}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = postReplay(t, srv.URL, adminToken, `{"consumer":-1,"tags":[1]}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestReplayEndpoint_SelectsConsumerArchive(t *testing.T) {
	st := store.NewMemoryStore()
	a := archive.New(st)
	require.NoError(t, a.Archive(context.Background(), 0, 1, []byte("A")))
	require.NoError(t, a.Archive(context.Background(), 1, 1, []byte("B")))
	srv, pub := newServer(t, st, zap.NewNop())

	resp := postReplay(t, srv.URL, adminToken, `{"consumer":1,"tags":[1]}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"B"}, pub.bodies)
}

func TestReplayEndpoint_RequiresToken(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, archive.New(st).Archive(context.Background(), 0, 1, []byte("x")))
	srv, pub := newServer(t, st, zap.NewNop())

	resp := postReplay(t, srv.URL, "", `{"tags":[1]}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postReplay(t, srv.URL, "wrong", `{"tags":[1]}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Empty(t, pub.bodies, "nothing is republished without the token")
}

func TestReplayEndpoint_NotMountedWithoutToken(t *testing.T) {
	st := store.NewMemoryStore()
	svc := replay.NewService(archive.New(st), &nopPublisher{}, "notifications", zap.NewNop())
	srv := httptest.NewServer(api.NewRouter(st, svc, "", prometheus.NewRegistry(), zap.NewNop()))
	t.Cleanup(srv.Close)

	resp := postReplay(t, srv.URL, "anything", `{"tags":[1]}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestLogger_HealthChecksLogAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	srv, _ := newServer(t, store.NewMemoryStore(), zap.New(core))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Correlation-ID"))

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "abc-123", entries[0].ContextMap()["correlation_id"])
}
