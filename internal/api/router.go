package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/notification-worker/internal/api/handler"
	apimw "github.com/notifyhub/notification-worker/internal/api/middleware"
)

// NewRouter wires the ops HTTP surface: health checks, the Prometheus scrape
// endpoint and archive replay. Replay is only mounted when replayer is
// non-nil and adminToken is set, and every call must present the token.
func NewRouter(
	store handler.Pinger,
	replayer handler.Replayer,
	adminToken string,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	hh := handler.NewHealthHandler(store, logger)

	r.Get("/health", hh.Health)
	r.Get("/ready", hh.Ready)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if replayer != nil && adminToken != "" {
		rh := handler.NewReplayHandler(replayer, logger)
		r.With(apimw.RequireToken(adminToken)).Post("/admin/replay", rh.Replay)
	}

	return r
}
