// Package dispatcher drains the durable event queue: it routes each eligible
// event to its reward handler, applies the outcome to the ledger and
// notification stores, and writes the retry bookkeeping.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/repforge/internal/adapters/mq/queue"
	"github.com/okian/repforge/internal/domain/dedupe"
	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/domain/rewards"
	"github.com/okian/repforge/pkg/logger"
	"github.com/okian/repforge/pkg/metrics"
)

// Defaults applied when no option overrides them.
const (
	DefaultBatchSize = 50
	DefaultBackoff   = 60 * time.Second
)

// UnknownKindPolicy decides the fate of events without a handler.
type UnknownKindPolicy string

// Unknown kind policies.
const (
	// PolicyAck marks the event processed without ledger side effects.
	PolicyAck UnknownKindPolicy = "ack"
	// PolicyHold leaves the event untouched for a later deploy to handle.
	PolicyHold UnknownKindPolicy = "hold"
)

// ParseUnknownKindPolicy accepts "ack" or "hold"; empty means ack.
func ParseUnknownKindPolicy(s string) (UnknownKindPolicy, error) {
	switch p := UnknownKindPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyAck:
		return PolicyAck, nil
	case PolicyHold:
		return PolicyHold, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidPolicy)
	}
}

// EventStore is the part of the queue the dispatcher drives.
type EventStore interface {
	Due(ctx context.Context, q queue.DueQuery) ([]model.Event, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, f queue.Failure) error
}

// Ledger appends awards and answers trailing window counts.
type Ledger interface {
	Append(ctx context.Context, entries ...model.LedgerEntry) (int, error)
	CountSince(ctx context.Context, ownerID string, kind model.EventKind, since time.Time) (int, error)
}

// Notifier stores notifications produced by handlers.
type Notifier interface {
	Insert(ctx context.Context, ns ...model.Notification) error
}

// TierLookup resolves an owner's subscription tier.
type TierLookup interface {
	TierOf(ctx context.Context, ownerID string) (model.Tier, error)
}

// Stores groups the collaborators a Dispatcher writes to.
type Stores struct {
	Events        EventStore
	Ledger        Ledger
	Notifications Notifier
	Tiers         TierLookup
}

// Failure is one event that did not complete in a cycle.
type Failure struct {
	EventID string
	Err     error
}

// Report summarizes one cycle.
type Report struct {
	Selected  int
	Processed int
	// Skipped counts unknown kinds acknowledged without side effects.
	Skipped int
	// Held counts unknown kinds left in the queue.
	Held     int
	Failures []Failure
}

// Dispatcher runs dispatch cycles for one owner partition. It holds no
// timer; callers decide when to run a cycle. Cycles on one Dispatcher run
// one at a time.
type Dispatcher struct {
	mu sync.Mutex

	stores    Stores
	registry  *rewards.Registry
	dedupe    dedupe.Deduper
	logger    logger.Logger
	now       func() time.Time
	batchSize int
	backoff   time.Duration
	partition model.Partition
	unknown   UnknownKindPolicy
}

// New creates a dispatcher. A nil registry routes with the default policy.
func New(stores Stores, registry *rewards.Registry, opts ...Option) (*Dispatcher, error) {
	if stores.Events == nil || stores.Ledger == nil || stores.Notifications == nil || stores.Tiers == nil {
		return nil, ErrMissingDependency
	}
	if registry == nil {
		registry = rewards.NewRegistry(nil)
	}
	d := &Dispatcher{
		stores:    stores,
		registry:  registry,
		logger:    logger.Default().Named("dispatcher"),
		now:       time.Now,
		batchSize: DefaultBatchSize,
		backoff:   DefaultBackoff,
		unknown:   PolicyAck,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.dedupe == nil {
		d.dedupe = dedupe.NewInMemoryDeduper()
	}
	if err := d.partition.Validate(); err != nil {
		return nil, err
	}
	policy, err := ParseUnknownKindPolicy(string(d.unknown))
	if err != nil {
		return nil, err
	}
	d.unknown = policy
	d.batchSize = queue.ClampLimit(d.batchSize)
	d.logger = d.logger.With(logger.String("partition", d.partition.String()))
	return d, nil
}

// Partition returns the owner partition this dispatcher serves.
func (d *Dispatcher) Partition() model.Partition { return d.partition }

// RunCycle selects one batch of eligible events and handles them in order.
// Per-event failures land in the report; the error is non-nil only when
// the batch could not be selected. Cancelling ctx does not abort a cycle
// that has started. A call made while another cycle runs waits for it.
func (d *Dispatcher) RunCycle(ctx context.Context) (Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	label := d.partition.String()
	defer func() {
		metrics.RecordCycleDuration(float64(time.Since(start).Milliseconds()))
	}()

	events, err := d.stores.Events.Due(ctx, queue.DueQuery{
		Now:       d.now(),
		Limit:     d.batchSize,
		Partition: d.partition,
	})
	if err != nil {
		metrics.RecordCycle(label, "error")
		metrics.RecordErrorByComponent("dispatcher", "select_due")
		d.logger.Error(ctx, "selecting due events failed", logger.Error(err))
		return Report{}, fmt.Errorf("select due events: %w", err)
	}
	metrics.UpdateCycleBatchSize(label, len(events))

	rep := Report{Selected: len(events)}
	for i := range events {
		d.dispatch(ctx, &events[i], &rep)
	}
	metrics.RecordCycle(label, "ok")
	if rep.Selected > 0 {
		d.logger.Debug(ctx, "cycle finished",
			logger.Int("selected", rep.Selected),
			logger.Int("processed", rep.Processed),
			logger.Int("skipped", rep.Skipped),
			logger.Int("held", rep.Held),
			logger.Int("failed", len(rep.Failures)),
		)
	}
	return rep, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, e *model.Event, rep *Report) {
	kind := string(e.Kind)
	h, ok := d.registry.Lookup(e.Kind)
	if !ok {
		d.unknownKind(ctx, e, rep)
		return
	}

	if err := d.handle(ctx, h, e); err != nil {
		d.fail(ctx, e, err, rep)
		return
	}
	if err := d.stores.Events.MarkProcessed(ctx, e.ID, d.now()); err != nil {
		metrics.RecordEventDispatched(kind, "commit_error")
		d.logger.Error(ctx, "committing processed event failed",
			logger.String("event_id", e.ID), logger.Error(err))
		rep.Failures = append(rep.Failures, Failure{EventID: e.ID, Err: err})
		return
	}
	metrics.RecordEventDispatched(kind, "processed")
	rep.Processed++
}

// handle gathers the handler input, runs the handler and applies its outcome.
func (d *Dispatcher) handle(ctx context.Context, h rewards.Handler, e *model.Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordHandlerLatency(string(e.Kind), float64(time.Since(start).Milliseconds()))
	}()

	now := d.now()
	tier, err := d.stores.Tiers.TierOf(ctx, e.OwnerID)
	if err != nil {
		return fmt.Errorf("lookup tier: %w", err)
	}
	in := rewards.Input{Event: *e, Tier: tier, Now: now}
	if w, ok := h.(rewards.Windowed); ok {
		kind, span := w.Window()
		n, err := d.stores.Ledger.CountSince(ctx, e.OwnerID, kind, now.Add(-span))
		if err != nil {
			return fmt.Errorf("count recent %s: %w", kind, err)
		}
		in.RecentActivity = n
	}

	out, err := h.Handle(in)
	if err != nil {
		return err
	}
	return d.apply(ctx, out)
}

// apply writes entries the dedupe cache has not seen, then notifications.
// Keys recorded for a failed append are forgotten so the retry can write.
// When the outcome carries entries and none of them is new, its
// notifications are dropped.
func (d *Dispatcher) apply(ctx context.Context, out rewards.Outcome) error {
	fresh := make([]model.LedgerEntry, 0, len(out.Entries))
	recorded := make([]string, 0, len(out.Entries))
	for i := range out.Entries {
		key := out.Entries[i].IdempotencyKey()
		if key != "" {
			if d.dedupe.SeenAndRecord(ctx, key) {
				metrics.RecordLedgerDuplicate()
				continue
			}
			recorded = append(recorded, key)
		}
		fresh = append(fresh, out.Entries[i])
	}

	written := 0
	if len(fresh) > 0 {
		n, err := d.stores.Ledger.Append(ctx, fresh...)
		if err != nil {
			for _, key := range recorded {
				d.dedupe.Unrecord(ctx, key)
			}
			return fmt.Errorf("append ledger: %w", err)
		}
		written = n
		for i := n; i < len(fresh); i++ {
			metrics.RecordLedgerDuplicate()
		}
		for i := range fresh {
			p, _ := fresh[i].Points.Float64()
			metrics.RecordLedgerEntry(string(fresh[i].ActivityKind), p)
		}
	}

	if len(out.Notifications) == 0 || (len(out.Entries) > 0 && written == 0) {
		return nil
	}
	if err := d.stores.Notifications.Insert(ctx, out.Notifications...); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	for i := range out.Notifications {
		metrics.RecordNotification(out.Notifications[i].Category)
	}
	return nil
}

// fail writes retry bookkeeping for a failed attempt.
func (d *Dispatcher) fail(ctx context.Context, e *model.Event, cause error, rep *Report) {
	kind := string(e.Kind)
	outcome := "failed"
	if errors.Is(cause, rewards.ErrInvalidPayload) {
		outcome = "invalid_payload"
	}
	metrics.RecordEventDispatched(kind, outcome)

	retry := e.RetryCount + 1
	f := queue.Failure{
		RetryCount:   retry,
		ErrorMessage: cause.Error(),
		ScheduledFor: d.now().Add(time.Duration(retry) * d.backoff),
	}
	if err := d.stores.Events.MarkFailed(ctx, e.ID, f); err != nil {
		metrics.RecordEventDispatched(kind, "commit_error")
		d.logger.Error(ctx, "committing failed event failed",
			logger.String("event_id", e.ID), logger.Error(err))
		rep.Failures = append(rep.Failures, Failure{EventID: e.ID, Err: errors.Join(cause, err)})
		return
	}
	rep.Failures = append(rep.Failures, Failure{EventID: e.ID, Err: cause})

	fields := []logger.Field{
		logger.String("event_id", e.ID),
		logger.String("kind", kind),
		logger.Int("retry_count", retry),
		logger.Int("max_retries", e.MaxRetries),
		logger.Error(cause),
	}
	if retry >= e.MaxRetries {
		metrics.RecordEventExhausted(kind)
		d.logger.Error(ctx, "event exhausted its retries", fields...)
		return
	}
	metrics.RecordEventRetried(kind)
	d.logger.Warn(ctx, "event failed, rescheduled",
		append(fields, logger.Time("scheduled_for", f.ScheduledFor))...)
}

func (d *Dispatcher) unknownKind(ctx context.Context, e *model.Event, rep *Report) {
	metrics.RecordUnknownKind(string(d.unknown))
	d.logger.Warn(ctx, "no handler for event kind",
		logger.String("event_id", e.ID),
		logger.String("kind", string(e.Kind)),
		logger.String("policy", string(d.unknown)),
	)
	if d.unknown == PolicyHold {
		metrics.RecordEventDispatched(string(e.Kind), "held")
		rep.Held++
		return
	}
	if err := d.stores.Events.MarkProcessed(ctx, e.ID, d.now()); err != nil {
		metrics.RecordEventDispatched(string(e.Kind), "commit_error")
		rep.Failures = append(rep.Failures, Failure{
			EventID: e.ID,
			Err:     fmt.Errorf("ack %s: %w: %w", e.Kind, ErrUnknownKind, err),
		})
		return
	}
	metrics.RecordEventDispatched(string(e.Kind), "skipped")
	rep.Skipped++
}
