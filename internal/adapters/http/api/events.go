package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/repforge/internal/adapters/mq/queue"
	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/domain/types"
	"github.com/okian/repforge/pkg/metrics"
)

// EventDependencies defines the event queue operations the API exposes.
type EventDependencies interface {
	Insert(ctx context.Context, e model.Event) error
	Get(ctx context.Context, id string) (model.Event, error)
	Exhausted(ctx context.Context, limit int) ([]model.Event, error)
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps       EventDependencies
	now        func() time.Time
	maxRetries int
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies, now func() time.Time, maxRetries int) *EventsHandler {
	return &EventsHandler{deps: deps, now: now, maxRetries: maxRetries}
}

func validateEvent(req *types.EventRequest) error {
	switch {
	case strings.TrimSpace(string(req.Kind)) == "":
		return errors.New("missing kind")
	case strings.TrimSpace(req.OwnerID) == "":
		return errors.New("missing owner_id")
	case req.MaxRetries < 0:
		return fmt.Errorf("max_retries %d is negative", req.MaxRetries)
	}
	return nil
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req types.EventRequest
	if err := decodeBody(r, op, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if err := validateEvent(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	now := h.now().UTC()
	e := model.Event{
		ID:           req.ID,
		Kind:         req.Kind,
		Payload:      req.Payload,
		OwnerID:      req.OwnerID,
		ScheduledFor: now,
		MaxRetries:   req.MaxRetries,
		CreatedAt:    now,
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = h.maxRetries
	}
	if req.ScheduledFor != nil {
		e.ScheduledFor = req.ScheduledFor.UTC()
	}

	err := h.deps.Insert(r.Context(), e)
	if errors.Is(err, queue.ErrDuplicateEvent) {
		writeJSON(w, http.StatusOK, types.EventAck{ID: e.ID, Status: "duplicate", Duplicate: true})
		return
	}
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	metrics.RecordEventIngested(string(e.Kind))
	writeJSON(w, http.StatusAccepted, types.EventAck{ID: e.ID, Status: "accepted"})
}

// HandleGetEvent handles GET /events/{id} requests.
func (h *EventsHandler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_event"
	e, err := h.deps.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleExhausted handles GET /events/exhausted?limit=N requests. It lists
// events that used every retry, for external monitoring.
func (h *EventsHandler) HandleExhausted(w http.ResponseWriter, r *http.Request) {
	const op = "api.exhausted_events"
	n, err := queryLimit(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	events, err := h.deps.Exhausted(r.Context(), n)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, types.EventList{Events: events})
}
