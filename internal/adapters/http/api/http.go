// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/repforge/pkg/logger"
)

// Default values for requests that leave them out.
const defaultMaxRetries = 3

// Dependencies bundles everything the handlers read or write. The handler
// layer only sees these narrow interfaces.
type Dependencies interface {
	EventDependencies
	OwnerDependencies
	DispatchDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	logger            logger.Logger
	now               func() time.Time
	defaultMaxRetries int

	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	eventsHandler   *EventsHandler
	ownersHandler   *OwnersHandler
	dispatchHandler *DispatchHandler
	plansHandler    *PlansHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		logger:            logger.Default().Named("api"),
		now:               time.Now,
		defaultMaxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.eventsHandler = NewEventsHandler(deps, s.now, s.defaultMaxRetries)
	s.ownersHandler = NewOwnersHandler(deps)
	s.dispatchHandler = NewDispatchHandler(deps, s.logger)
	s.plansHandler = NewPlansHandler()
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	s.route(mux, "GET /healthz", "healthz", s.healthHandler.HandleHealth)
	s.route(mux, "GET /stats", "stats", s.statsHandler.HandleStats)

	s.route(mux, "POST /events", "events", s.eventsHandler.HandlePostEvent)
	s.route(mux, "GET /events/exhausted", "events_exhausted", s.eventsHandler.HandleExhausted)
	s.route(mux, "GET /events/{id}", "event", s.eventsHandler.HandleGetEvent)
	s.route(mux, "POST /dispatch", "dispatch", s.dispatchHandler.HandleDispatch)

	s.route(mux, "GET /owners/{id}/balance", "owner_balance", s.ownersHandler.HandleBalance)
	s.route(mux, "GET /owners/{id}/ledger", "owner_ledger", s.ownersHandler.HandleLedger)
	s.route(mux, "GET /owners/{id}/notifications", "owner_notifications", s.ownersHandler.HandleNotifications)
	s.route(mux, "PUT /owners/{id}/tier", "owner_tier", s.ownersHandler.HandleSetTier)

	s.route(mux, "POST /plans/progression", "plans_progression", s.plansHandler.HandleProgression)
	s.route(mux, "POST /plans/timebox", "plans_timebox", s.plansHandler.HandleTimebox)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure picks the status from the error's kind.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// decodeBody decodes a JSON body, rejecting unknown fields.
func decodeBody(r *http.Request, op string, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}
