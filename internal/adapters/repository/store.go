// Package repository holds the ledger, notification and tier stores, in
// memory and on SQLite. The SQLite store also implements the durable event
// queue.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/domain/points"
	"github.com/shopspring/decimal"
)

// Default and maximum page sizes for list reads.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// LedgerStore is the append-only points ledger.
type LedgerStore interface {
	// Append writes entries and returns how many were new. An entry whose
	// id or idempotency key is already present is skipped.
	Append(ctx context.Context, entries ...model.LedgerEntry) (int, error)

	// Entries returns the owner's entries, newest first.
	Entries(ctx context.Context, ownerID string, limit int) ([]model.LedgerEntry, error)

	// Balance folds every entry of the owner.
	Balance(ctx context.Context, ownerID string) (decimal.Decimal, error)

	// CountSince counts the owner's entries of kind created at or after since.
	CountSince(ctx context.Context, ownerID string, kind model.EventKind, since time.Time) (int, error)
}

// NotificationStore records user-facing messages.
type NotificationStore interface {
	// Insert writes notifications; ids already present are skipped.
	Insert(ctx context.Context, ns ...model.Notification) error
	List(ctx context.Context, ownerID string, limit int) ([]model.Notification, error)
}

// TierStore resolves subscription tiers.
type TierStore interface {
	// TierOf returns the owner's tier, TierEssential when unknown.
	TierOf(ctx context.Context, ownerID string) (model.Tier, error)
	SetTier(ctx context.Context, ownerID string, tier model.Tier) error
}

// checkEntry rejects entries that would break the ledger law.
func checkEntry(e *model.LedgerEntry) error {
	if e.ID == "" || e.OwnerID == "" {
		return fmt.Errorf("entry %q: missing id or owner: %w", e.ID, ErrInvalidEntry)
	}
	if e.TransactionType != model.TransactionEarned && e.TransactionType != model.TransactionSpent {
		return fmt.Errorf("entry %s: transaction type %q: %w", e.ID, e.TransactionType, ErrInvalidEntry)
	}
	if err := points.Verify(e); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	return nil
}

func listLimit(n int) (int, error) {
	switch {
	case n == 0:
		return DefaultListLimit, nil
	case n < 0 || n > MaxListLimit:
		return 0, fmt.Errorf("limit %d: %w", n, ErrInvalidLimit)
	}
	return n, nil
}
