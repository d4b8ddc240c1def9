package api

import (
	"context"
	"net/http"

	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/domain/types"
	"github.com/shopspring/decimal"
)

// OwnerDependencies defines the per-owner reads and the tier write.
type OwnerDependencies interface {
	Balance(ctx context.Context, ownerID string) (decimal.Decimal, error)
	Entries(ctx context.Context, ownerID string, limit int) ([]model.LedgerEntry, error)
	ListNotifications(ctx context.Context, ownerID string, limit int) ([]model.Notification, error)
	TierOf(ctx context.Context, ownerID string) (model.Tier, error)
	SetTier(ctx context.Context, ownerID string, tier model.Tier) error
}

// OwnersHandler handles /owners/{id}/... requests.
type OwnersHandler struct {
	deps OwnerDependencies
}

// NewOwnersHandler creates a new owners handler.
func NewOwnersHandler(deps OwnerDependencies) *OwnersHandler {
	return &OwnersHandler{deps: deps}
}

// HandleBalance handles GET /owners/{id}/balance requests.
func (h *OwnersHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_balance"
	id, err := ownerID(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	tier, err := h.deps.TierOf(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	bal, err := h.deps.Balance(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.Balance{OwnerID: id, Tier: tier, Points: bal})
}

// HandleLedger handles GET /owners/{id}/ledger?limit=N requests.
func (h *OwnersHandler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ledger"
	id, err := ownerID(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	n, err := queryLimit(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	entries, err := h.deps.Entries(r.Context(), id, n)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, types.LedgerPage{OwnerID: id, Entries: entries})
}

// HandleNotifications handles GET /owners/{id}/notifications?limit=N requests.
func (h *OwnersHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_notifications"
	id, err := ownerID(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	n, err := queryLimit(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	ns, err := h.deps.ListNotifications(r.Context(), id, n)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if ns == nil {
		ns = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, types.NotificationPage{OwnerID: id, Notifications: ns})
}

// HandleSetTier handles PUT /owners/{id}/tier requests.
func (h *OwnersHandler) HandleSetTier(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_tier"
	id, err := ownerID(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	var req types.TierRequest
	if err := decodeBody(r, op, &req); err != nil {
		writeFailure(w, err)
		return
	}
	tier := model.ParseTier(string(req.Tier))
	if err := h.deps.SetTier(r.Context(), id, tier); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.TierRequest{Tier: tier})
}
