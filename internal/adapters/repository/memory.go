package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/domain/points"
	"github.com/shopspring/decimal"
)

// MemoryLedger is a LedgerStore held in process memory.
type MemoryLedger struct {
	mu      sync.RWMutex
	byOwner map[string][]model.LedgerEntry
	ids     map[string]struct{}
	keys    map[string]struct{}
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		byOwner: make(map[string][]model.LedgerEntry),
		ids:     make(map[string]struct{}),
		keys:    make(map[string]struct{}),
	}
}

// Append validates every entry first, then writes the new ones.
func (l *MemoryLedger) Append(_ context.Context, entries ...model.LedgerEntry) (int, error) {
	for i := range entries {
		if err := checkEntry(&entries[i]); err != nil {
			return 0, err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for i := range entries {
		e := entries[i]
		if _, dup := l.ids[e.ID]; dup {
			continue
		}
		key := e.IdempotencyKey()
		if key != "" {
			if _, dup := l.keys[key]; dup {
				continue
			}
			l.keys[key] = struct{}{}
		}
		l.ids[e.ID] = struct{}{}
		l.byOwner[e.OwnerID] = append(l.byOwner[e.OwnerID], e)
		n++
	}
	return n, nil
}

// Entries returns the newest entries first.
func (l *MemoryLedger) Entries(_ context.Context, ownerID string, limit int) ([]model.LedgerEntry, error) {
	limit, err := listLimit(limit)
	if err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.byOwner[ownerID]
	out := make([]model.LedgerEntry, 0, min(limit, len(src)))
	for i := len(src) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

// Balance folds the owner's entries.
func (l *MemoryLedger) Balance(_ context.Context, ownerID string) (decimal.Decimal, error) {
	if ownerID == "" {
		return decimal.Zero, ErrInvalidOwner
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return points.Balance(l.byOwner[ownerID])
}

// CountSince counts entries of kind created at or after since.
func (l *MemoryLedger) CountSince(_ context.Context, ownerID string, kind model.EventKind, since time.Time) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for i := range l.byOwner[ownerID] {
		e := &l.byOwner[ownerID][i]
		if e.ActivityKind == kind && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// MemoryNotifications is a NotificationStore held in process memory.
type MemoryNotifications struct {
	mu      sync.RWMutex
	byOwner map[string][]model.Notification
	ids     map[string]struct{}
}

// NewMemoryNotifications creates an empty store.
func NewMemoryNotifications() *MemoryNotifications {
	return &MemoryNotifications{
		byOwner: make(map[string][]model.Notification),
		ids:     make(map[string]struct{}),
	}
}

// Insert skips ids already stored.
func (s *MemoryNotifications) Insert(_ context.Context, ns ...model.Notification) error {
	for i := range ns {
		if ns[i].OwnerID == "" {
			return ErrInvalidOwner
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range ns {
		if _, dup := s.ids[n.ID]; dup {
			continue
		}
		s.ids[n.ID] = struct{}{}
		s.byOwner[n.OwnerID] = append(s.byOwner[n.OwnerID], n)
	}
	return nil
}

// List returns the newest notifications first.
func (s *MemoryNotifications) List(_ context.Context, ownerID string, limit int) ([]model.Notification, error) {
	limit, err := listLimit(limit)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.byOwner[ownerID]
	out := make([]model.Notification, 0, min(limit, len(src)))
	for i := len(src) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

// MemoryTiers is a TierStore held in process memory.
type MemoryTiers struct {
	mu    sync.RWMutex
	tiers map[string]model.Tier
}

// NewMemoryTiers creates a store where every owner starts as essential.
func NewMemoryTiers() *MemoryTiers {
	return &MemoryTiers{tiers: make(map[string]model.Tier)}
}

// TierOf defaults to TierEssential.
func (t *MemoryTiers) TierOf(_ context.Context, ownerID string) (model.Tier, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if tier, ok := t.tiers[ownerID]; ok {
		return tier, nil
	}
	return model.TierEssential, nil
}

// SetTier stores the normalized tier.
func (t *MemoryTiers) SetTier(_ context.Context, ownerID string, tier model.Tier) error {
	if ownerID == "" {
		return ErrInvalidOwner
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tiers[ownerID] = model.ParseTier(string(tier))
	return nil
}
