package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the side of a ledger entry.
type TransactionType string

// Transaction types.
const (
	TransactionEarned TransactionType = "earned"
	TransactionSpent  TransactionType = "spent"
)

// Multiplier is one named factor applied to base points.
type Multiplier struct {
	Name   string          `json:"name"`
	Factor decimal.Decimal `json:"factor"`
}

// Multipliers keeps factors in application order so the product is
// reproducible from persisted data.
type Multipliers []Multiplier

// LedgerEntry is an immutable row of the append-only points ledger.
// Points always equals BasePoints × ∏ Multipliers × TierMultiplier rounded
// to two decimals.
type LedgerEntry struct {
	ID                  string          `json:"id"`
	OwnerID             string          `json:"owner_id"`
	TransactionType     TransactionType `json:"transaction_type"`
	ActivityKind        EventKind       `json:"activity_kind"`
	ActivityReferenceID string          `json:"activity_reference_id,omitempty"`
	BasePoints          decimal.Decimal `json:"base_points"`
	Multipliers         Multipliers     `json:"multipliers"`
	TierMultiplier      decimal.Decimal `json:"tier_multiplier"`
	Points              decimal.Decimal `json:"points"`
	Description         string          `json:"description"`
	CreatedAt           time.Time       `json:"created_at"`
}

// IdempotencyKey identifies the activity an entry rewards.
// Entries without a reference id have no key.
func (e *LedgerEntry) IdempotencyKey() string {
	if e.ActivityReferenceID == "" {
		return ""
	}
	return e.OwnerID + "|" + string(e.ActivityKind) + "|" + e.ActivityReferenceID
}

// Notification is a user-facing message produced by a handler.
type Notification struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Tier is the owner's subscription level.
type Tier string

// Subscription tiers.
const (
	TierEssential Tier = "essential"
	TierPlus      Tier = "plus"
	TierPremium   Tier = "premium"
)

// ParseTier normalizes a stored tier. Unknown or empty values fall back to
// TierEssential.
func ParseTier(s string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierPlus:
		return TierPlus
	case TierPremium:
		return TierPremium
	default:
		return TierEssential
	}
}
