package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/pkg/logger"
	"github.com/okian/repforge/pkg/metrics"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schemaDefinition string

const driverName = "sqlite3"

// SQLiteStore keeps events, ledger, notifications and tiers in one SQLite
// database. It implements queue.Store, LedgerStore, NotificationStore and
// TierStore.
type SQLiteStore struct {
	db            *sqlx.DB
	logger        logger.Logger
	busyTimeoutMs int
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := newSQLiteStore(opts...)

	dsn := s.dsn(path)
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Info(ctx, "opened database", logger.String("path", path))
	return s, nil
}

// NewSQLiteStore wraps an existing connection without migrating it.
func NewSQLiteStore(db *sql.DB, opts ...Option) *SQLiteStore {
	s := newSQLiteStore(opts...)
	s.db = sqlx.NewDb(db, driverName)
	return s
}

func newSQLiteStore(opts ...Option) *SQLiteStore {
	s := &SQLiteStore{
		logger:        logger.Default().Named("sqlite"),
		busyTimeoutMs: 5000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLiteStore) dsn(path string) string {
	params := fmt.Sprintf("_busy_timeout=%d&_foreign_keys=on&_txlock=immediate", s.busyTimeoutMs)
	if strings.Contains(path, ":memory:") {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", uuid.NewString(), params)
	}
	return fmt.Sprintf("file:%s?_journal_mode=wal&_synchronous=normal&%s", path, params)
}

// Migrate applies the embedded schema. It is idempotent.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDefinition); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// observe records the latency of one repository operation.
func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.RecordRepositoryLatency(op, float64(time.Since(start).Milliseconds()))
	}
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == code
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

type eventRow struct {
	ID           string        `db:"id"`
	Kind         string        `db:"kind"`
	Payload      []byte        `db:"payload"`
	OwnerID      string        `db:"owner_id"`
	PartitionKey int64         `db:"partition_key"`
	Processed    bool          `db:"processed"`
	ProcessedAt  sql.NullInt64 `db:"processed_at"`
	ScheduledFor int64         `db:"scheduled_for"`
	RetryCount   int           `db:"retry_count"`
	MaxRetries   int           `db:"max_retries"`
	ErrorMessage string        `db:"error_message"`
	CreatedAt    int64         `db:"created_at"`
}

func newEventRow(e *model.Event) eventRow {
	r := eventRow{
		ID:           e.ID,
		Kind:         string(e.Kind),
		Payload:      []byte(e.Payload),
		OwnerID:      e.OwnerID,
		PartitionKey: int64(model.PartitionKey(e.OwnerID)),
		Processed:    e.Processed,
		ScheduledFor: toMillis(e.ScheduledFor),
		RetryCount:   e.RetryCount,
		MaxRetries:   e.MaxRetries,
		ErrorMessage: e.ErrorMessage,
		CreatedAt:    toMillis(e.CreatedAt),
	}
	if e.ProcessedAt != nil {
		r.ProcessedAt = sql.NullInt64{Int64: toMillis(*e.ProcessedAt), Valid: true}
	}
	return r
}

func (r *eventRow) event() model.Event {
	e := model.Event{
		ID:           r.ID,
		Kind:         model.EventKind(r.Kind),
		Payload:      json.RawMessage(r.Payload),
		OwnerID:      r.OwnerID,
		Processed:    r.Processed,
		ScheduledFor: fromMillis(r.ScheduledFor),
		RetryCount:   r.RetryCount,
		MaxRetries:   r.MaxRetries,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    fromMillis(r.CreatedAt),
	}
	if r.ProcessedAt.Valid {
		at := fromMillis(r.ProcessedAt.Int64)
		e.ProcessedAt = &at
	}
	return e
}

type ledgerRow struct {
	ID                  string          `db:"id"`
	OwnerID             string          `db:"owner_id"`
	TransactionType     string          `db:"transaction_type"`
	ActivityKind        string          `db:"activity_kind"`
	ActivityReferenceID string          `db:"activity_reference_id"`
	BasePoints          decimal.Decimal `db:"base_points"`
	Multipliers         string          `db:"multipliers"`
	TierMultiplier      decimal.Decimal `db:"tier_multiplier"`
	Points              decimal.Decimal `db:"points"`
	Description         string          `db:"description"`
	CreatedAt           int64           `db:"created_at"`
}

func newLedgerRow(e *model.LedgerEntry) (ledgerRow, error) {
	ms := e.Multipliers
	if ms == nil {
		ms = model.Multipliers{}
	}
	raw, err := json.Marshal(ms)
	if err != nil {
		return ledgerRow{}, fmt.Errorf("encode multipliers: %w", err)
	}
	return ledgerRow{
		ID:                  e.ID,
		OwnerID:             e.OwnerID,
		TransactionType:     string(e.TransactionType),
		ActivityKind:        string(e.ActivityKind),
		ActivityReferenceID: e.ActivityReferenceID,
		BasePoints:          e.BasePoints,
		Multipliers:         string(raw),
		TierMultiplier:      e.TierMultiplier,
		Points:              e.Points,
		Description:         e.Description,
		CreatedAt:           toMillis(e.CreatedAt),
	}, nil
}

func (r *ledgerRow) entry() (model.LedgerEntry, error) {
	var ms model.Multipliers
	if err := json.Unmarshal([]byte(r.Multipliers), &ms); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("entry %s: decode multipliers: %w", r.ID, err)
	}
	return model.LedgerEntry{
		ID:                  r.ID,
		OwnerID:             r.OwnerID,
		TransactionType:     model.TransactionType(r.TransactionType),
		ActivityKind:        model.EventKind(r.ActivityKind),
		ActivityReferenceID: r.ActivityReferenceID,
		BasePoints:          r.BasePoints,
		Multipliers:         ms,
		TierMultiplier:      r.TierMultiplier,
		Points:              r.Points,
		Description:         r.Description,
		CreatedAt:           fromMillis(r.CreatedAt),
	}, nil
}

type notificationRow struct {
	ID        string `db:"id"`
	OwnerID   string `db:"owner_id"`
	Title     string `db:"title"`
	Content   string `db:"content"`
	Category  string `db:"category"`
	Kind      string `db:"kind"`
	CreatedAt int64  `db:"created_at"`
}
