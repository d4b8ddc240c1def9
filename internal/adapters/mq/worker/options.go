package worker

import (
	"github.com/okian/repforge/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithName sets the pool name used in logs.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSchedule sets the cron spec that triggers a run, e.g. "@every 5s"
// or "*/1 * * * *".
func WithSchedule(spec string) Option {
	return func(p *Pool) {
		if spec != "" {
			p.schedule = spec
		}
	}
}

// WithStats sets where queue depth is read after each run.
func WithStats(s StatsSource) Option {
	return func(p *Pool) {
		p.stats = s
	}
}
