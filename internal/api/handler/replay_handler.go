package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/notifyhub/notification-worker/internal/replay"
)

// Replayer republishes archived payloads by delivery tag.
type Replayer interface {
	Replay(ctx context.Context, consumer int, tags []uint64) (replay.Result, error)
}

// ReplayRequest is the body of POST /admin/replay. Consumer selects whose
// archive the tags refer to; it defaults to the first consumer.
type ReplayRequest struct {
	Consumer int      `json:"consumer"`
	Tags     []uint64 `json:"tags"`
}

// ReplayHandler exposes archive replay to operators.
type ReplayHandler struct {
	svc    Replayer
	logger *zap.Logger
}

func NewReplayHandler(svc Replayer, logger *zap.Logger) *ReplayHandler {
	return &ReplayHandler{svc: svc, logger: logger}
}

// Replay handles POST /admin/replay
//
// Responds 200 with per-tag results; tags that could not be republished are
// listed with their error rather than failing the request.
func (h *ReplayHandler) Replay(w http.ResponseWriter, r *http.Request) {
	var req ReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Consumer < 0 {
		respondError(w, http.StatusUnprocessableEntity, "consumer must not be negative")
		return
	}

	res, err := h.svc.Replay(r.Context(), req.Consumer, req.Tags)
	if err != nil {
		h.logger.Warn("replay failed", zap.Error(err))
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}
