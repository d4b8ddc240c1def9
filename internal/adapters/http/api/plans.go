package api

import (
	"net/http"

	"github.com/okian/repforge/internal/domain/progression"
	"github.com/okian/repforge/internal/domain/timebox"
	"github.com/okian/repforge/internal/domain/types"
	"github.com/okian/repforge/pkg/metrics"
)

// PlansHandler serves the synchronous planning endpoints used when a
// workout is generated.
type PlansHandler struct{}

// NewPlansHandler creates a new plans handler.
func NewPlansHandler() *PlansHandler {
	return &PlansHandler{}
}

// HandleProgression handles POST /plans/progression requests.
func (h *PlansHandler) HandleProgression(w http.ResponseWriter, r *http.Request) {
	const op = "api.plan_progression"
	var req types.ProgressionRequest
	if err := decodeBody(r, op, &req); err != nil {
		writeFailure(w, err)
		return
	}
	rec, err := progression.Evaluate(req.Plan, req.Snapshot)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	metrics.RecordProgressionRecommendation(string(rec.Action))
	writeJSON(w, http.StatusOK, rec)
}

// HandleTimebox handles POST /plans/timebox requests.
func (h *PlansHandler) HandleTimebox(w http.ResponseWriter, r *http.Request) {
	const op = "api.plan_timebox"
	var req types.TimeboxRequest
	if err := decodeBody(r, op, &req); err != nil {
		writeFailure(w, err)
		return
	}
	plan, err := timebox.Build(req.Candidates, req.TargetMinutes)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	metrics.RecordTimeboxPlan(len(plan.Supersets))
	writeJSON(w, http.StatusOK, plan)
}
