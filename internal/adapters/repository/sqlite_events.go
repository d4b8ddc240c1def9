package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/okian/repforge/internal/adapters/mq/queue"
	"github.com/okian/repforge/internal/domain/model"
)

const eventColumns = `id, kind, payload, owner_id, partition_key, processed, processed_at,
	scheduled_for, retry_count, max_retries, error_message, created_at`

// Insert stores a producer's event. ScheduledFor defaults to CreatedAt.
func (s *SQLiteStore) Insert(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: mirrors queue.Store
	defer observe("event_insert")()
	if err := queue.Validate(&e); err != nil {
		return err
	}
	if e.ScheduledFor.IsZero() {
		e.ScheduledFor = e.CreatedAt
	}
	row := newEventRow(&e)
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO events (`+eventColumns+`)
		VALUES (:id, :kind, :payload, :owner_id, :partition_key, :processed, :processed_at,
			:scheduled_for, :retry_count, :max_retries, :error_message, :created_at)`, row)
	if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("event %s: %w", e.ID, queue.ErrDuplicateEvent)
	}
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

// Due selects eligible events of the partition, oldest first.
func (s *SQLiteStore) Due(ctx context.Context, q queue.DueQuery) ([]model.Event, error) {
	defer observe("event_due")()
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE processed = 0 AND scheduled_for <= ? AND retry_count < max_retries`
	args := []any{toMillis(q.Now)}
	if !q.Partition.Whole() {
		query += ` AND partition_key % ? = ?`
		args = append(args, q.Partition.Count, q.Partition.Index)
	}
	query += ` ORDER BY created_at ASC, rowid ASC LIMIT ?`
	args = append(args, queue.ClampLimit(q.Limit))

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select due events: %w", err)
	}
	return eventsFromRows(rows), nil
}

// MarkProcessed commits a successful dispatch.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	defer observe("event_mark_processed")()
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET processed = 1, processed_at = ? WHERE id = ? AND processed = 0`,
		toMillis(at), id)
	if err != nil {
		return fmt.Errorf("mark event %s processed: %w", id, err)
	}
	return s.checkUpdated(ctx, res, id)
}

// MarkFailed commits retry bookkeeping.
func (s *SQLiteStore) MarkFailed(ctx context.Context, id string, f queue.Failure) error {
	defer observe("event_mark_failed")()
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET retry_count = ?, error_message = ?, scheduled_for = ?
		 WHERE id = ? AND processed = 0`,
		f.RetryCount, f.ErrorMessage, toMillis(f.ScheduledFor), id)
	if err != nil {
		return fmt.Errorf("mark event %s failed: %w", id, err)
	}
	return s.checkUpdated(ctx, res, id)
}

// checkUpdated turns a zero-row update into the matching sentinel.
func (s *SQLiteStore) checkUpdated(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("event %s: rows affected: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	var processed bool
	err = s.db.GetContext(ctx, &processed, `SELECT processed FROM events WHERE id = ?`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("event %s: %w", id, queue.ErrEventNotFound)
	case err != nil:
		return fmt.Errorf("event %s: %w", id, err)
	default:
		return fmt.Errorf("event %s: %w", id, queue.ErrAlreadyProcessed)
	}
}

// Get loads one event.
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Event, error) {
	var row eventRow
	err := s.db.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, fmt.Errorf("event %s: %w", id, queue.ErrEventNotFound)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get event %s: %w", id, err)
	}
	return row.event(), nil
}

// Exhausted lists unprocessed events with no retries left. A non-positive
// limit returns all of them.
func (s *SQLiteStore) Exhausted(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+eventColumns+` FROM events
		WHERE processed = 0 AND retry_count >= max_retries
		ORDER BY created_at ASC, rowid ASC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("select exhausted events: %w", err)
	}
	return eventsFromRows(rows), nil
}

// Stats counts events by state.
func (s *SQLiteStore) Stats(ctx context.Context) (queue.Stats, error) {
	var st queue.Stats
	err := s.db.GetContext(ctx, &st, `SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN processed = 0 AND retry_count < max_retries THEN 1 ELSE 0 END), 0) AS pending,
		COALESCE(SUM(CASE WHEN processed = 1 THEN 1 ELSE 0 END), 0) AS processed,
		COALESCE(SUM(CASE WHEN processed = 0 AND retry_count >= max_retries THEN 1 ELSE 0 END), 0) AS exhausted
		FROM events`)
	if err != nil {
		return queue.Stats{}, fmt.Errorf("event stats: %w", err)
	}
	return st, nil
}

func eventsFromRows(rows []eventRow) []model.Event {
	out := make([]model.Event, len(rows))
	for i := range rows {
		out[i] = rows[i].event()
	}
	return out
}
