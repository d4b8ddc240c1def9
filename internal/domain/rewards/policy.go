// Package rewards maps activity events to ledger entries and notifications.
// Handlers are pure: every input they depend on arrives in Input, and the
// caller applies the Outcome.
package rewards

import (
	"strings"
	"time"

	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/domain/points"
	"github.com/shopspring/decimal"
)

// Default award values.
const (
	DefaultStreakThreshold = 3
	DefaultStreakWindow    = 7 * 24 * time.Hour
)

// Policy holds the award configuration shared by every handler.
type Policy struct {
	workoutBase     map[string]decimal.Decimal
	defaultWorkout  decimal.Decimal
	personalRecord  decimal.Decimal
	nutrition       decimal.Decimal
	aiWorkout       decimal.Decimal
	dailyGoals      decimal.Decimal
	streakMilestone decimal.Decimal
	streakFactor    decimal.Decimal
	streakThreshold int
	streakWindow    time.Duration
	tiers           *points.TierTable
}

// NewPolicy returns the default award policy with opts applied.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		workoutBase: map[string]decimal.Decimal{
			"strength": decimal.NewFromInt(50),
			"hiit":     decimal.NewFromInt(45),
			"cardio":   decimal.NewFromInt(40),
			"mobility": decimal.NewFromInt(25),
			"yoga":     decimal.NewFromInt(25),
		},
		defaultWorkout:  decimal.NewFromInt(30),
		personalRecord:  decimal.NewFromInt(100),
		nutrition:       decimal.NewFromInt(10),
		aiWorkout:       decimal.NewFromInt(15),
		dailyGoals:      decimal.NewFromInt(25),
		streakMilestone: decimal.NewFromInt(50),
		streakFactor:    decimal.RequireFromString("1.2"),
		streakThreshold: DefaultStreakThreshold,
		streakWindow:    DefaultStreakWindow,
		tiers:           points.NewTierTable(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkoutBase returns the base award for an activity type.
func (p *Policy) WorkoutBase(activity string) decimal.Decimal {
	if v, ok := p.workoutBase[normalizeActivity(activity)]; ok {
		return v
	}
	return p.defaultWorkout
}

// StreakWindow is the trailing span counted toward the workout streak.
func (p *Policy) StreakWindow() time.Duration { return p.streakWindow }

// TierMultiplier returns the rate applied to tiered awards.
func (p *Policy) TierMultiplier(t model.Tier) decimal.Decimal { return p.tiers.Multiplier(t) }

func normalizeActivity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
