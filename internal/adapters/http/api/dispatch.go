package api

import (
	"context"
	"net/http"

	"github.com/okian/repforge/internal/adapters/mq/worker"
	"github.com/okian/repforge/pkg/logger"
)

// DispatchDependencies runs a dispatch pass on demand.
type DispatchDependencies interface {
	RunOnce(ctx context.Context) (worker.Summary, error)
}

// DispatchHandler handles manual cycle triggers.
type DispatchHandler struct {
	deps   DispatchDependencies
	logger logger.Logger
}

// NewDispatchHandler creates a new dispatch handler.
func NewDispatchHandler(deps DispatchDependencies, l logger.Logger) *DispatchHandler {
	return &DispatchHandler{deps: deps, logger: l}
}

// HandleDispatch handles POST /dispatch requests. Partition errors are
// reported with the partial summary.
func (h *DispatchHandler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.dispatch"
	sum, err := h.deps.RunOnce(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "manual dispatch failed", logger.Error(err))
		status, code := classify(err)
		writeJSON(w, status, struct {
			errorResponse
			Summary worker.Summary `json:"summary"`
		}{errorResponse{Code: code, Message: Wrap(op, err).Error()}, sum})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
