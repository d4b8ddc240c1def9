// Package types contains request and response shapes shared by the API and
// its clients.
package types

import (
	"encoding/json"
	"time"

	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/domain/progression"
	"github.com/okian/repforge/internal/domain/timebox"
	"github.com/shopspring/decimal"
)

// EventRequest is the body of POST /events. ID defaults to a random uuid,
// MaxRetries to the configured default and ScheduledFor to now.
type EventRequest struct {
	ID           string          `json:"id,omitempty"`
	Kind         model.EventKind `json:"kind"`
	OwnerID      string          `json:"owner_id"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	MaxRetries   int             `json:"max_retries,omitempty"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
}

// EventAck acknowledges an accepted event.
type EventAck struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Balance is an owner's current point total.
type Balance struct {
	OwnerID string          `json:"owner_id"`
	Tier    model.Tier      `json:"tier"`
	Points  decimal.Decimal `json:"points"`
}

// LedgerPage lists an owner's newest entries.
type LedgerPage struct {
	OwnerID string              `json:"owner_id"`
	Entries []model.LedgerEntry `json:"entries"`
}

// NotificationPage lists an owner's newest notifications.
type NotificationPage struct {
	OwnerID       string               `json:"owner_id"`
	Notifications []model.Notification `json:"notifications"`
}

// TierRequest is the body of PUT /owners/{id}/tier.
type TierRequest struct {
	Tier model.Tier `json:"tier"`
}

// EventList wraps a list of queue rows.
type EventList struct {
	Events []model.Event `json:"events"`
}

// ProgressionRequest is the body of POST /plans/progression.
type ProgressionRequest struct {
	Plan     progression.Plan     `json:"plan"`
	Snapshot progression.Snapshot `json:"snapshot"`
}

// TimeboxRequest is the body of POST /plans/timebox.
type TimeboxRequest struct {
	TargetMinutes int                 `json:"target_minutes"`
	Candidates    []timebox.Candidate `json:"candidates"`
}
