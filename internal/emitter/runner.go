package emitter

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/repforge/internal/adapters/repository"
	"github.com/okian/repforge/internal/domain/points"
	"github.com/okian/repforge/internal/domain/types"
	"github.com/okian/repforge/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Run checks the service, submits a generated batch and, when asked,
// dispatches it and verifies every touched owner.
func Run(ctx context.Context, cfg *Config) (Stats, error) {
	c := cfg.withDefaults()
	log := logger.Get().Named("emitter")
	start := time.Now()
	var stats Stats

	log.Info(ctx, "starting event emitter",
		logger.String("baseURL", c.BaseURL),
		logger.Int("events", c.NumEvents),
		logger.Int("owners", c.Owners),
		logger.Int("workers", c.Workers),
		logger.Float64("duplicateRate", c.DuplicateRate),
	)

	client := NewClient(c.BaseURL, c.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	events, err := Generate(&c)
	if err != nil {
		return stats, err
	}
	stats.Generated = len(events)

	if err := submit(ctx, client, &c, events, &stats, log); err != nil {
		return stats, err
	}

	if c.Dispatch {
		if err := dispatch(ctx, client, &stats, log); err != nil {
			return stats, err
		}
	}
	if c.Verify {
		if err := verify(ctx, client, &c, owners(events), &stats, log); err != nil {
			return stats, err
		}
	}

	stats.Duration = time.Since(start)
	log.Info(ctx, "emitter finished",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("processed", stats.Processed),
		logger.Int("verified", stats.Verified),
		logger.Duration("elapsed", stats.Duration),
	)
	if len(stats.Mismatched) > 0 {
		return stats, fmt.Errorf("%d owners with balance != ledger: %v", len(stats.Mismatched), stats.Mismatched)
	}
	return stats, nil
}

// submit posts events with at most c.Workers requests in flight.
func submit(ctx context.Context, client *Client, c *Config, events []types.EventRequest, stats *Stats, log logger.Logger) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Workers)

	for i := range events {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := client.PostEvent(gctx, &events[i])
			mu.Lock()
			defer mu.Unlock()
			switch res {
			case resultAccepted:
				stats.Accepted++
			case resultDuplicate:
				stats.Duplicate++
			default:
				stats.Failed++
				if c.Verbose {
					log.Warn(gctx, "event submission failed", logger.String("eventID", events[i].ID), logger.Error(err))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("submission interrupted: %w", err)
	}
	log.Info(ctx, "event submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
	)
	return nil
}

// dispatch triggers cycles until one selects nothing; each cycle takes at
// most one batch per partition.
func dispatch(ctx context.Context, client *Client, stats *Stats, log logger.Logger) error {
	const maxCycles = 10_000
	for range maxCycles {
		sum, err := client.Dispatch(ctx)
		if err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}
		stats.Processed += sum.Processed
		stats.Skipped += sum.Skipped
		stats.Retrying += sum.Failed
		if sum.Selected == 0 || sum.Selected == sum.Failed {
			log.Info(ctx, "dispatch drained",
				logger.Int("processed", stats.Processed),
				logger.Int("failedAttempts", stats.Retrying),
			)
			return nil
		}
	}
	return fmt.Errorf("dispatch did not drain after %d cycles", maxCycles)
}

// verify checks that each owner's balance equals the fold of its ledger.
// Owners with more entries than one page holds are skipped.
func verify(ctx context.Context, client *Client, c *Config, ids []string, stats *Stats, log logger.Logger) error {
	for _, id := range ids {
		bal, err := client.Balance(ctx, id)
		if err != nil {
			return fmt.Errorf("balance %s: %w", id, err)
		}
		page, err := client.Ledger(ctx, id, repository.MaxListLimit)
		if err != nil {
			return fmt.Errorf("ledger %s: %w", id, err)
		}
		if len(page.Entries) == repository.MaxListLimit {
			continue
		}
		folded, err := points.Balance(page.Entries)
		if err != nil {
			return fmt.Errorf("fold %s: %w", id, err)
		}
		if !folded.Equal(bal.Points) {
			stats.Mismatched = append(stats.Mismatched, id)
			log.Error(ctx, "balance does not match ledger",
				logger.String("ownerID", id),
				logger.String("balance", bal.Points.String()),
				logger.String("ledger", folded.String()),
			)
			continue
		}
		stats.Verified++
		if c.Verbose {
			log.Debug(ctx, "owner verified", logger.String("ownerID", id), logger.String("balance", bal.Points.String()))
		}
	}
	return nil
}

func owners(events []types.EventRequest) []string {
	seen := make(map[string]struct{}, len(events))
	var out []string
	for i := range events {
		if _, ok := seen[events[i].OwnerID]; ok {
			continue
		}
		seen[events[i].OwnerID] = struct{}{}
		out = append(out, events[i].OwnerID)
	}
	slices.Sort(out)
	return out
}
