// Package worker runs dispatch cycles across owner partitions, either on
// demand or on a cron schedule.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/repforge/internal/adapters/mq/dispatcher"
	"github.com/okian/repforge/internal/adapters/mq/queue"
	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/pkg/logger"
	"github.com/okian/repforge/pkg/metrics"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// DefaultSchedule triggers a run every five seconds.
const DefaultSchedule = "@every 5s"

// Cycler runs one dispatch cycle for a partition.
type Cycler interface {
	RunCycle(ctx context.Context) (dispatcher.Report, error)
	Partition() model.Partition
}

// StatsSource reports queue state for the depth gauge.
type StatsSource interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// Summary aggregates the reports of one run across partitions.
type Summary struct {
	Partitions int       `json:"partitions"`
	Selected   int       `json:"selected"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Held       int       `json:"held"`
	Failed     int       `json:"failed"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Failure is one event that did not complete during a run.
type Failure struct {
	EventID string `json:"event_id"`
	Error   string `json:"error"`
}

func (s *Summary) add(r *dispatcher.Report) {
	s.Selected += r.Selected
	s.Processed += r.Processed
	s.Skipped += r.Skipped
	s.Held += r.Held
	s.Failed += len(r.Failures)
	for _, f := range r.Failures {
		s.Failures = append(s.Failures, Failure{EventID: f.EventID, Error: f.Err.Error()})
	}
}

// Pool owns one Cycler per partition. Partitions run in parallel; events
// inside a partition are handled sequentially by its Cycler.
type Pool struct {
	cyclers  []Cycler
	stats    StatsSource
	schedule string
	name     string
	logger   logger.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPool creates a pool over cyclers.
func NewPool(cyclers []Cycler, opts ...Option) (*Pool, error) {
	if len(cyclers) == 0 {
		return nil, ErrNoCyclers
	}
	p := &Pool{
		cyclers:  cyclers,
		schedule: DefaultSchedule,
		name:     "worker-pool",
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named(p.name)
	return p, nil
}

// Size returns the number of partitions.
func (p *Pool) Size() int { return len(p.cyclers) }

// RunOnce runs one cycle on every partition and waits for all of them.
// Partition errors are joined; the summary covers the partitions that ran.
func (p *Pool) RunOnce(ctx context.Context) (Summary, error) {
	reports := make([]dispatcher.Report, len(p.cyclers))
	errs := make([]error, len(p.cyclers))

	var g errgroup.Group
	for i, c := range p.cyclers {
		g.Go(func() error {
			rep, err := c.RunCycle(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("partition %s: %w", c.Partition(), err)
				return nil
			}
			reports[i] = rep
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{Partitions: len(p.cyclers)}
	for i := range reports {
		sum.add(&reports[i])
	}
	p.updateDepth(ctx)
	return sum, errors.Join(errs...)
}

func (p *Pool) updateDepth(ctx context.Context) {
	if p.stats == nil {
		return
	}
	st, err := p.stats.Stats(ctx)
	if err != nil {
		p.logger.Warn(ctx, "reading queue stats failed", logger.Error(err))
		return
	}
	metrics.UpdateQueueDepth(st.Pending)
}

// Start schedules RunOnce on the cron spec. A tick that fires while the
// previous run is still going is skipped.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return ErrAlreadyStarted
	}

	cl := cronLogger{l: p.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	runCtx := context.WithoutCancel(ctx)
	if _, err := c.AddFunc(p.schedule, func() { p.tick(runCtx) }); err != nil {
		return fmt.Errorf("%q: %w: %w", p.schedule, ErrInvalidSchedule, err)
	}
	c.Start()
	p.cron = c
	p.logger.Info(ctx, "cycle schedule started",
		logger.String("schedule", p.schedule),
		logger.Int("partitions", len(p.cyclers)),
	)
	return nil
}

func (p *Pool) tick(ctx context.Context) {
	start := time.Now()
	sum, err := p.RunOnce(ctx)
	if err != nil {
		p.logger.Error(ctx, "scheduled run failed", logger.Error(err))
	}
	if sum.Selected > 0 {
		p.logger.Info(ctx, "scheduled run finished",
			logger.Int("selected", sum.Selected),
			logger.Int("processed", sum.Processed),
			logger.Int("failed", sum.Failed),
			logger.Duration("elapsed", time.Since(start)),
		)
	}
}

// Shutdown stops the schedule and waits for a running cycle to finish or
// ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c == nil {
		return ErrNotStarted
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct{ l logger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(context.Background(), msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(context.Background(), msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
