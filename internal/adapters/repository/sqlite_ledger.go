package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/domain/points"
	"github.com/shopspring/decimal"
)

const ledgerColumns = `id, owner_id, transaction_type, activity_kind, activity_reference_id,
	base_points, multipliers, tier_multiplier, points, description, created_at`

// Append inserts entries in one transaction. The primary key and the
// (owner, kind, reference) index turn replays into no-ops.
func (s *SQLiteStore) Append(ctx context.Context, entries ...model.LedgerEntry) (int, error) {
	defer observe("ledger_append")()
	rows := make([]ledgerRow, len(entries))
	for i := range entries {
		if err := checkEntry(&entries[i]); err != nil {
			return 0, err
		}
		r, err := newLedgerRow(&entries[i])
		if err != nil {
			return 0, err
		}
		rows[i] = r
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin ledger append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	appended := 0
	for i := range rows {
		res, err := tx.NamedExecContext(ctx, `INSERT OR IGNORE INTO ledger_entries (`+ledgerColumns+`)
			VALUES (:id, :owner_id, :transaction_type, :activity_kind, :activity_reference_id,
				:base_points, :multipliers, :tier_multiplier, :points, :description, :created_at)`, rows[i])
		if err != nil {
			return 0, fmt.Errorf("insert ledger entry %s: %w", rows[i].ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert ledger entry %s: %w", rows[i].ID, err)
		}
		appended += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ledger append: %w", err)
	}
	return appended, nil
}

// Entries returns the owner's newest entries first.
func (s *SQLiteStore) Entries(ctx context.Context, ownerID string, limit int) ([]model.LedgerEntry, error) {
	limit, err := listLimit(limit)
	if err != nil {
		return nil, err
	}
	return s.selectEntries(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, ownerID, limit)
}

// Balance folds every entry of the owner in Go so decimals stay exact.
func (s *SQLiteStore) Balance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	defer observe("ledger_balance")()
	if ownerID == "" {
		return decimal.Zero, ErrInvalidOwner
	}
	entries, err := s.selectEntries(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries WHERE owner_id = ?`, ownerID)
	if err != nil {
		return decimal.Zero, err
	}
	return points.Balance(entries)
}

// CountSince counts entries of kind created at or after since.
func (s *SQLiteStore) CountSince(ctx context.Context, ownerID string, kind model.EventKind, since time.Time) (int, error) {
	defer observe("ledger_count_since")()
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM ledger_entries
		WHERE owner_id = ? AND activity_kind = ? AND created_at >= ?`,
		ownerID, string(kind), toMillis(since))
	if err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) selectEntries(ctx context.Context, query string, args ...any) ([]model.LedgerEntry, error) {
	var rows []ledgerRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	out := make([]model.LedgerEntry, len(rows))
	for i := range rows {
		e, err := rows[i].entry()
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// InsertNotifications writes notifications, skipping known ids.
func (s *SQLiteStore) InsertNotifications(ctx context.Context, ns ...model.Notification) error {
	defer observe("notification_insert")()
	rows := make([]notificationRow, len(ns))
	for i, n := range ns {
		if n.OwnerID == "" {
			return ErrInvalidOwner
		}
		rows[i] = notificationRow{
			ID:        n.ID,
			OwnerID:   n.OwnerID,
			Title:     n.Title,
			Content:   n.Content,
			Category:  n.Category,
			Kind:      n.Kind,
			CreatedAt: toMillis(n.CreatedAt),
		}
	}
	for i := range rows {
		if _, err := s.db.NamedExecContext(ctx, `INSERT OR IGNORE INTO notifications
			(id, owner_id, title, content, category, kind, created_at)
			VALUES (:id, :owner_id, :title, :content, :category, :kind, :created_at)`, rows[i]); err != nil {
			return fmt.Errorf("insert notification %s: %w", rows[i].ID, err)
		}
	}
	return nil
}

// ListNotifications returns the owner's newest notifications first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, ownerID string, limit int) ([]model.Notification, error) {
	limit, err := listLimit(limit)
	if err != nil {
		return nil, err
	}
	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, owner_id, title, content, category, kind, created_at
		FROM notifications WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, ownerID, limit); err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	out := make([]model.Notification, len(rows))
	for i, r := range rows {
		out[i] = model.Notification{
			ID:        r.ID,
			OwnerID:   r.OwnerID,
			Title:     r.Title,
			Content:   r.Content,
			Category:  r.Category,
			Kind:      r.Kind,
			CreatedAt: fromMillis(r.CreatedAt),
		}
	}
	return out, nil
}

// Notifications adapts the store to NotificationStore.
func (s *SQLiteStore) Notifications() NotificationStore { return sqliteNotifications{s} }

type sqliteNotifications struct{ s *SQLiteStore }

func (n sqliteNotifications) Insert(ctx context.Context, ns ...model.Notification) error {
	return n.s.InsertNotifications(ctx, ns...)
}

func (n sqliteNotifications) List(ctx context.Context, ownerID string, limit int) ([]model.Notification, error) {
	return n.s.ListNotifications(ctx, ownerID, limit)
}

// TierOf returns the stored tier, TierEssential when absent.
func (s *SQLiteStore) TierOf(ctx context.Context, ownerID string) (model.Tier, error) {
	defer observe("tier_lookup")()
	var tier string
	err := s.db.GetContext(ctx, &tier, `SELECT tier FROM tiers WHERE owner_id = ?`, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TierEssential, nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup tier: %w", err)
	}
	return model.ParseTier(tier), nil
}

// SetTier upserts the owner's tier.
func (s *SQLiteStore) SetTier(ctx context.Context, ownerID string, tier model.Tier) error {
	if ownerID == "" {
		return ErrInvalidOwner
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tiers (owner_id, tier, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET tier = excluded.tier, updated_at = excluded.updated_at`,
		ownerID, string(model.ParseTier(string(tier))), toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	return nil
}
