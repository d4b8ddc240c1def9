package rewards

import (
	"time"

	"github.com/okian/repforge/internal/domain/points"
	"github.com/shopspring/decimal"
)

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithWorkoutBasePoints sets the base award per workout activity type.
// Keys are matched case-insensitively.
func WithWorkoutBasePoints(table map[string]float64) Option {
	return func(p *Policy) {
		for k, v := range table {
			if v >= 0 {
				p.workoutBase[normalizeActivity(k)] = points.Factor(v)
			}
		}
	}
}

// WithDefaultWorkoutPoints sets the award for activity types missing from the table.
func WithDefaultWorkoutPoints(v float64) Option {
	return func(p *Policy) {
		if v >= 0 {
			p.defaultWorkout = points.Factor(v)
		}
	}
}

// WithBonuses sets the flat awards of the non-workout kinds. Negative values
// keep the default.
func WithBonuses(personalRecord, nutrition, aiWorkout, dailyGoals, streakMilestone float64) Option {
	return func(p *Policy) {
		set := func(dst *decimal.Decimal, v float64) {
			if v >= 0 {
				*dst = points.Factor(v)
			}
		}
		set(&p.personalRecord, personalRecord)
		set(&p.nutrition, nutrition)
		set(&p.aiWorkout, aiWorkout)
		set(&p.dailyGoals, dailyGoals)
		set(&p.streakMilestone, streakMilestone)
	}
}

// WithStreak configures the workout streak factor: factor applies when at
// least threshold workouts fall in the trailing window.
func WithStreak(factor float64, threshold int, window time.Duration) Option {
	return func(p *Policy) {
		if factor > 0 {
			p.streakFactor = points.Factor(factor)
		}
		if threshold > 0 {
			p.streakThreshold = threshold
		}
		if window > 0 {
			p.streakWindow = window
		}
	}
}

// WithTierTable sets the subscription rate table.
func WithTierTable(t *points.TierTable) Option {
	return func(p *Policy) {
		if t != nil {
			p.tiers = t
		}
	}
}
