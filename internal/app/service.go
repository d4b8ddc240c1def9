// Package service assembles the stores, the reward handlers and the
// partitioned dispatch workers, and exposes them to the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/repforge/internal/adapters/http/api"
	"github.com/okian/repforge/internal/adapters/mq/dispatcher"
	eventqueue "github.com/okian/repforge/internal/adapters/mq/queue"
	"github.com/okian/repforge/internal/adapters/mq/worker"
	"github.com/okian/repforge/internal/adapters/repository"
	"github.com/okian/repforge/internal/config"
	"github.com/okian/repforge/internal/domain/dedupe"
	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/domain/points"
	"github.com/okian/repforge/internal/domain/rewards"
	"github.com/okian/repforge/pkg/logger"
	"github.com/okian/repforge/pkg/metrics"
	"github.com/shopspring/decimal"
)

// ErrNotStarted is returned by data calls made before Start or after Stop.
// The API reports it as 503.
var ErrNotStarted = fmt.Errorf("service not started: %w", api.ErrUnavailable)

// Service implements the API dependencies for the rewards pipeline.
type Service struct {
	mu sync.RWMutex

	cfg      *config.Config
	now      func() time.Time
	schedule bool

	// Core components
	events  eventqueue.Store
	ledger  repository.LedgerStore
	notes   repository.NotificationStore
	tiers   repository.TierStore
	closer  func() error
	deduper dedupe.Deduper
	pool    *worker.Pool

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the dispatch clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithManualDispatch leaves the cron schedule off; cycles run only through
// RunOnce.
func WithManualDispatch() Option {
	return func(s *Service) {
		s.schedule = false
	}
}

// New constructs a Service from cfg. A nil cfg means the defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:      cfg,
		now:      time.Now,
		schedule: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the stores, builds one dispatcher per partition and, unless
// manual dispatch was requested, starts the cycle schedule.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if err := s.cfg.Validate(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "starting rewards service...")

	if err := s.openStores(ctx); err != nil {
		return err
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))

	pool, err := s.buildPool()
	if err != nil {
		s.closeStores(ctx)
		return err
	}
	if s.schedule {
		if err := pool.Start(ctx); err != nil {
			s.closeStores(ctx)
			return err
		}
	}
	s.pool = pool

	s.started = true
	s.logger.Info(ctx, "rewards service started",
		logger.String("store", s.cfg.Store),
		logger.Int("partitions", pool.Size()),
		logger.Int("batchSize", s.cfg.BatchSize),
		logger.Bool("scheduled", s.schedule),
	)
	return nil
}

func (s *Service) openStores(ctx context.Context) error {
	switch s.cfg.Store {
	case config.StoreMemory:
		s.events = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.cfg.QueueCapacity))
		s.ledger = repository.NewMemoryLedger()
		s.notes = repository.NewMemoryNotifications()
		s.tiers = repository.NewMemoryTiers()
		s.closer = nil
		s.logger.Info(ctx, "using memory store")
	default:
		db, err := repository.OpenSQLite(ctx, s.cfg.DatabasePath,
			repository.WithLogger(s.logger.Named("sqlite")),
		)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.events = db
		s.ledger = db
		s.notes = db.Notifications()
		s.tiers = db
		s.closer = db.Close
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.cfg.DatabasePath))
	}
	return nil
}

func (s *Service) closeStores(ctx context.Context) {
	if s.closer == nil {
		return
	}
	if err := s.closer(); err != nil {
		s.logger.Error(ctx, "closing store failed", logger.Error(err))
	}
	s.closer = nil
}

// buildPool wires one dispatcher per partition over the shared stores.
func (s *Service) buildPool() (*worker.Pool, error) {
	policy, err := dispatcher.ParseUnknownKindPolicy(s.cfg.UnknownKindPolicy)
	if err != nil {
		return nil, err
	}
	registry := rewards.NewRegistry(PolicyFromConfig(s.cfg))
	stores := dispatcher.Stores{
		Events:        s.events,
		Ledger:        s.ledger,
		Notifications: s.notes,
		Tiers:         s.tiers,
	}

	parts := model.Partitions(s.cfg.Partitions)
	cyclers := make([]worker.Cycler, 0, len(parts))
	for _, p := range parts {
		d, err := dispatcher.New(stores, registry,
			dispatcher.WithPartition(p),
			dispatcher.WithBatchSize(s.cfg.BatchSize),
			dispatcher.WithBackoff(s.cfg.RetryBackoff()),
			dispatcher.WithUnknownKindPolicy(policy),
			dispatcher.WithDeduper(s.deduper),
			dispatcher.WithClock(s.now),
			dispatcher.WithLogger(s.logger.Named("dispatcher")),
		)
		if err != nil {
			return nil, fmt.Errorf("dispatcher %s: %w", p, err)
		}
		cyclers = append(cyclers, d)
	}
	return worker.NewPool(cyclers,
		worker.WithSchedule(s.cfg.CycleSchedule),
		worker.WithStats(s.events),
		worker.WithLogger(s.logger),
	)
}

// PolicyFromConfig builds the award policy from the configured tables.
func PolicyFromConfig(cfg *config.Config) *rewards.Policy {
	return rewards.NewPolicy(
		rewards.WithWorkoutBasePoints(cfg.WorkoutBasePoints),
		rewards.WithDefaultWorkoutPoints(cfg.DefaultWorkoutPoints),
		rewards.WithBonuses(
			cfg.PersonalRecordBonus,
			cfg.NutritionBonus,
			cfg.AIWorkoutBonus,
			cfg.DailyGoalsBonus,
			cfg.StreakMilestoneBonus,
		),
		rewards.WithStreak(cfg.StreakMultiplier, cfg.StreakThreshold, cfg.StreakWindow()),
		rewards.WithTierTable(points.NewTierTable(points.WithTierMultipliersFromConfig(cfg.TierMultipliers))),
	)
}

// Stop stops the schedule, waits for a running cycle within ctx and closes
// the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping rewards service...")

	var err error
	if s.schedule && s.pool != nil {
		if serr := s.pool.Shutdown(ctx); serr != nil && !errors.Is(serr, worker.ErrNotStarted) {
			err = serr
		}
	}
	s.closeStores(ctx)

	s.started = false
	s.logger.Info(ctx, "rewards service stopped")
	return err
}

// running returns the components under the read lock.
func (s *Service) running() (*Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s, nil
}

// Insert enqueues a producer event.
func (s *Service) Insert(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: mirrors queue.Store
	r, err := s.running()
	if err != nil {
		return err
	}
	if err := r.events.Insert(ctx, e); err != nil {
		return err
	}
	s.logger.Debug(ctx, "event enqueued",
		logger.String("eventID", e.ID),
		logger.String("kind", string(e.Kind)),
		logger.String("ownerID", e.OwnerID),
	)
	return nil
}

// Get returns one event by id.
func (s *Service) Get(ctx context.Context, id string) (model.Event, error) {
	r, err := s.running()
	if err != nil {
		return model.Event{}, err
	}
	return r.events.Get(ctx, id)
}

// Exhausted lists events that used up their retries.
func (s *Service) Exhausted(ctx context.Context, limit int) ([]model.Event, error) {
	r, err := s.running()
	if err != nil {
		return nil, err
	}
	return r.events.Exhausted(ctx, limit)
}

// Balance folds the owner's ledger.
func (s *Service) Balance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	r, err := s.running()
	if err != nil {
		return decimal.Zero, err
	}
	return r.ledger.Balance(ctx, ownerID)
}

// Entries lists the owner's ledger, newest first.
func (s *Service) Entries(ctx context.Context, ownerID string, limit int) ([]model.LedgerEntry, error) {
	r, err := s.running()
	if err != nil {
		return nil, err
	}
	return r.ledger.Entries(ctx, ownerID, limit)
}

// ListNotifications lists the owner's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, ownerID string, limit int) ([]model.Notification, error) {
	r, err := s.running()
	if err != nil {
		return nil, err
	}
	return r.notes.List(ctx, ownerID, limit)
}

// TierOf returns the owner's subscription tier.
func (s *Service) TierOf(ctx context.Context, ownerID string) (model.Tier, error) {
	r, err := s.running()
	if err != nil {
		return "", err
	}
	return r.tiers.TierOf(ctx, ownerID)
}

// SetTier records the owner's subscription tier.
func (s *Service) SetTier(ctx context.Context, ownerID string, tier model.Tier) error {
	r, err := s.running()
	if err != nil {
		return err
	}
	if err := r.tiers.SetTier(ctx, ownerID, tier); err != nil {
		return err
	}
	s.logger.Info(ctx, "tier updated", logger.String("ownerID", ownerID), logger.String("tier", string(tier)))
	return nil
}

// RunOnce runs one dispatch cycle on every partition.
func (s *Service) RunOnce(ctx context.Context) (worker.Summary, error) {
	r, err := s.running()
	if err != nil {
		return worker.Summary{}, err
	}
	return r.pool.RunOnce(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":    s.started,
		"store":      s.cfg.Store,
		"partitions": s.cfg.Partitions,
		"batchSize":  s.cfg.BatchSize,
		"schedule":   s.cfg.CycleSchedule,
	}
	if !s.started {
		return stats, nil
	}

	st, err := s.events.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats["queue"] = st
	stats["dedupeSize"] = s.deduper.Size()
	metrics.UpdateQueueDepth(st.Pending)
	return stats, nil
}
