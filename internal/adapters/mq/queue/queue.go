// Package queue defines the durable event queue contract the dispatcher
// polls, and an in-memory arena implementing it.
package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/pkg/metrics"
)

// MaxBatch is the most events one Due call returns.
const MaxBatch = 100

// DueQuery selects eligible events.
type DueQuery struct {
	Now       time.Time
	Limit     int
	Partition model.Partition
}

// Failure is the retry bookkeeping written after a failed attempt.
type Failure struct {
	RetryCount   int
	ErrorMessage string
	ScheduledFor time.Time
}

// Stats summarizes the queue for monitoring.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Processed int `json:"processed"`
	Exhausted int `json:"exhausted"`
}

// Store is the durable event queue. Rows are addressed by id and never
// deleted.
type Store interface {
	// Insert adds a new event as written by a producer.
	Insert(ctx context.Context, e model.Event) error

	// Due returns up to q.Limit eligible events of q.Partition, oldest
	// created_at first.
	Due(ctx context.Context, q DueQuery) ([]model.Event, error)

	// MarkProcessed commits a successful dispatch.
	MarkProcessed(ctx context.Context, id string, at time.Time) error

	// MarkFailed commits retry bookkeeping for a failed dispatch.
	MarkFailed(ctx context.Context, id string, f Failure) error

	Get(ctx context.Context, id string) (model.Event, error)

	// Exhausted lists unprocessed events with no retries left, oldest first.
	Exhausted(ctx context.Context, limit int) ([]model.Event, error)

	Stats(ctx context.Context) (Stats, error)
}

// Validate checks the fields every producer must set.
func Validate(e *model.Event) error {
	switch {
	case e.ID == "":
		return fmt.Errorf("missing id: %w", ErrInvalidEvent)
	case e.Kind == "":
		return fmt.Errorf("event %s: missing kind: %w", e.ID, ErrInvalidEvent)
	case e.OwnerID == "":
		return fmt.Errorf("event %s: missing owner: %w", e.ID, ErrInvalidEvent)
	case e.MaxRetries < 1:
		return fmt.Errorf("event %s: max_retries %d: %w", e.ID, e.MaxRetries, ErrInvalidEvent)
	}
	return nil
}

// ClampLimit bounds a batch size to 1..MaxBatch.
func ClampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxBatch {
		return MaxBatch
	}
	return n
}

// InMemoryQueue is a Store held in process memory.
type InMemoryQueue struct {
	mu       sync.RWMutex
	events   map[string]*record
	seq      uint64
	capacity int
}

type record struct {
	event model.Event
	seq   uint64
	key   uint32
}

// NewInMemoryQueue creates an empty arena.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{events: make(map[string]*record)}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Insert stores e. ScheduledFor defaults to CreatedAt.
func (q *InMemoryQueue) Insert(_ context.Context, e model.Event) error { //nolint:gocritic // hugeParam: stored by value
	if err := Validate(&e); err != nil {
		return err
	}
	if e.ScheduledFor.IsZero() {
		e.ScheduledFor = e.CreatedAt
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.events[e.ID]; ok {
		return fmt.Errorf("event %s: %w", e.ID, ErrDuplicateEvent)
	}
	if q.capacity > 0 && len(q.events) >= q.capacity {
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return ErrQueueFull
	}
	q.seq++
	q.events[e.ID] = &record{event: e, seq: q.seq, key: model.PartitionKey(e.OwnerID)}
	return nil
}

// Due returns eligible events ordered by CreatedAt, then insertion order.
func (q *InMemoryQueue) Due(_ context.Context, dq DueQuery) ([]model.Event, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	recs := make([]*record, 0)
	for _, r := range q.events {
		if r.event.Eligible(dq.Now) && dq.Partition.ContainsKey(r.key) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.event.CreatedAt.Equal(b.event.CreatedAt) {
			return a.event.CreatedAt.Before(b.event.CreatedAt)
		}
		return a.seq < b.seq
	})
	limit := ClampLimit(dq.Limit)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]model.Event, len(recs))
	for i, r := range recs {
		out[i] = r.event
	}
	return out, nil
}

// MarkProcessed sets processed and processed_at.
func (q *InMemoryQueue) MarkProcessed(_ context.Context, id string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, err := q.unprocessedLocked(id)
	if err != nil {
		return err
	}
	r.event.Processed = true
	r.event.ProcessedAt = &at
	return nil
}

// MarkFailed writes the retry bookkeeping.
func (q *InMemoryQueue) MarkFailed(_ context.Context, id string, f Failure) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, err := q.unprocessedLocked(id)
	if err != nil {
		return err
	}
	r.event.RetryCount = f.RetryCount
	r.event.ErrorMessage = f.ErrorMessage
	r.event.ScheduledFor = f.ScheduledFor
	return nil
}

// Get returns a copy of the event.
func (q *InMemoryQueue) Get(_ context.Context, id string) (model.Event, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	r, ok := q.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("event %s: %w", id, ErrEventNotFound)
	}
	return r.event, nil
}

// Exhausted lists events that used every retry.
func (q *InMemoryQueue) Exhausted(_ context.Context, limit int) ([]model.Event, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	recs := make([]*record, 0)
	for _, r := range q.events {
		if r.event.Exhausted() {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]model.Event, len(recs))
	for i, r := range recs {
		out[i] = r.event
	}
	return out, nil
}

// Stats counts events by state.
func (q *InMemoryQueue) Stats(_ context.Context) (Stats, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	s := Stats{Total: len(q.events)}
	for _, r := range q.events {
		switch {
		case r.event.Processed:
			s.Processed++
		case r.event.Exhausted():
			s.Exhausted++
		default:
			s.Pending++
		}
	}
	return s, nil
}

func (q *InMemoryQueue) unprocessedLocked(id string) (*record, error) {
	r, ok := q.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, ErrEventNotFound)
	}
	if r.event.Processed {
		return nil, fmt.Errorf("event %s: %w", id, ErrAlreadyProcessed)
	}
	return r, nil
}
