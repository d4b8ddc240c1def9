// Package config defines service configuration and its defaults.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: sqlite or memory.
	Store string `koanf:"store"`
	// DatabasePath is the SQLite file; ":memory:" keeps it in process.
	DatabasePath string `koanf:"database_path"`
	// QueueCapacity bounds the memory event queue. Zero is unbounded.
	QueueCapacity int `koanf:"queue_capacity"`

	// BatchSize is how many events a cycle selects per partition (1..100).
	BatchSize int `koanf:"batch_size"`
	// RetryBackoffSeconds is the base retry delay.
	RetryBackoffSeconds int `koanf:"retry_backoff_seconds"`
	// DefaultMaxRetries applies to events posted without max_retries.
	DefaultMaxRetries int `koanf:"default_max_retries"`
	// CycleSchedule is the cron spec that triggers dispatch.
	CycleSchedule string `koanf:"cycle_schedule"`
	// Partitions is how many owner partitions are dispatched in parallel.
	Partitions int `koanf:"partitions"`
	// UnknownKindPolicy is ack or hold.
	UnknownKindPolicy string `koanf:"unknown_kind_policy"`
	// DedupeSize bounds the ledger idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`
	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `koanf:"shutdown_timeout_seconds"`

	// WorkoutBasePoints maps activity types to their base award.
	WorkoutBasePoints map[string]float64 `koanf:"workout_base_points"`
	// DefaultWorkoutPoints is used for activity types not in the table.
	DefaultWorkoutPoints float64 `koanf:"default_workout_points"`

	PersonalRecordBonus  float64 `koanf:"personal_record_bonus"`
	NutritionBonus       float64 `koanf:"nutrition_bonus"`
	AIWorkoutBonus       float64 `koanf:"ai_workout_bonus"`
	DailyGoalsBonus      float64 `koanf:"daily_goals_bonus"`
	StreakMilestoneBonus float64 `koanf:"streak_milestone_bonus"`

	// StreakMultiplier applies to a workout when at least StreakThreshold
	// workouts fall inside the trailing StreakWindowDays.
	StreakMultiplier float64 `koanf:"streak_multiplier"`
	StreakThreshold  int     `koanf:"streak_threshold"`
	StreakWindowDays int     `koanf:"streak_window_days"`

	// TierMultipliers maps subscription tiers to their reward rate.
	TierMultipliers map[string]float64 `koanf:"tier_multipliers"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		Store:                  StoreSQLite,
		DatabasePath:           "repforge.db",
		BatchSize:              50,
		RetryBackoffSeconds:    60,
		DefaultMaxRetries:      3,
		CycleSchedule:          "@every 5s",
		Partitions:             1,
		UnknownKindPolicy:      "ack",
		DedupeSize:             50_000,
		ShutdownTimeoutSeconds: 10,
		WorkoutBasePoints: map[string]float64{
			"strength": 50,
			"hiit":     45,
			"cardio":   40,
			"mobility": 25,
			"yoga":     25,
		},
		DefaultWorkoutPoints: 30,
		PersonalRecordBonus:  100,
		NutritionBonus:       10,
		AIWorkoutBonus:       15,
		DailyGoalsBonus:      25,
		StreakMilestoneBonus: 50,
		StreakMultiplier:     1.2,
		StreakThreshold:      3,
		StreakWindowDays:     7,
		TierMultipliers: map[string]float64{
			"essential": 0.5,
			"plus":      1.0,
			"premium":   1.5,
		},
	}
}

// RetryBackoff returns RetryBackoffSeconds as a duration.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSeconds) * time.Second
}

// StreakWindow returns StreakWindowDays as a duration.
func (c *Config) StreakWindow() time.Duration {
	return time.Duration(c.StreakWindowDays) * 24 * time.Hour
}

// ShutdownTimeout returns ShutdownTimeoutSeconds as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate(_ context.Context) error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	check(c.Addr != "", "addr must not be empty")
	check(c.Store == StoreSQLite || c.Store == StoreMemory, "store %q is not sqlite or memory", c.Store)
	check(c.Store != StoreSQLite || c.DatabasePath != "", "database_path must not be empty")
	check(c.BatchSize >= 1, "batch_size %d must be at least 1", c.BatchSize)
	check(c.RetryBackoffSeconds >= 0, "retry_backoff_seconds %d is negative", c.RetryBackoffSeconds)
	check(c.DefaultMaxRetries >= 1, "default_max_retries %d must be at least 1", c.DefaultMaxRetries)
	check(c.CycleSchedule != "", "cycle_schedule must not be empty")
	check(c.Partitions >= 1, "partitions %d must be at least 1", c.Partitions)
	policy := strings.ToLower(c.UnknownKindPolicy)
	check(policy == "ack" || policy == "hold", "unknown_kind_policy %q is not ack or hold", c.UnknownKindPolicy)
	check(c.StreakMultiplier > 0, "streak_multiplier %v must be positive", c.StreakMultiplier)
	check(c.StreakThreshold >= 1, "streak_threshold %d must be at least 1", c.StreakThreshold)
	check(c.StreakWindowDays >= 1, "streak_window_days %d must be at least 1", c.StreakWindowDays)
	for tier, rate := range c.TierMultipliers {
		check(rate >= 0, "tier_multipliers.%s %v is negative", tier, rate)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
