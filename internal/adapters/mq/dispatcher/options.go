package dispatcher

import (
	"time"

	"github.com/okian/repforge/internal/domain/dedupe"
	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithBatchSize sets how many events one cycle selects. It is clamped to
// 1..100.
func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		d.batchSize = n
	}
}

// WithBackoff sets the base retry delay. A failed event is rescheduled
// retry_count × backoff after the failure.
func WithBackoff(backoff time.Duration) Option {
	return func(d *Dispatcher) {
		if backoff >= 0 {
			d.backoff = backoff
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithPartition restricts the dispatcher to one owner partition.
func WithPartition(p model.Partition) Option {
	return func(d *Dispatcher) {
		d.partition = p
	}
}

// WithUnknownKindPolicy chooses what happens to events without a handler.
// New rejects values other than ack and hold with ErrInvalidPolicy.
func WithUnknownKindPolicy(p UnknownKindPolicy) Option {
	return func(d *Dispatcher) {
		d.unknown = p
	}
}

// WithDeduper shares an idempotency cache between dispatchers.
func WithDeduper(dd dedupe.Deduper) Option {
	return func(d *Dispatcher) {
		if dd != nil {
			d.dedupe = dd
		}
	}
}
