package emitter

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/domain/types"
)

// namespace scopes generated event ids.
var namespace = uuid.MustParse("8f1c7f0e-5d0b-4b8e-9a5c-3c0f6a2d7b11")

var activities = []string{"strength", "hiit", "cardio", "mobility", "yoga", "climbing"}

var meals = []string{"breakfast", "lunch", "dinner", "snack"}

var exercises = []string{"deadlift", "squat", "bench press", "5k run"}

// weightedKind is the share of each kind in a generated batch.
type weightedKind struct {
	kind   model.EventKind
	weight int
}

var mix = []weightedKind{
	{model.KindWorkoutCompleted, 40},
	{model.KindNutritionLogged, 25},
	{model.KindAIWorkoutGenerated, 10},
	{model.KindDailyGoalsMet, 10},
	{model.KindPersonalRecordAchieved, 10},
	{model.KindStreakMilestone, 5},
}

// Generate builds a reproducible batch: the same Config yields the same
// events. A DuplicateRate share of events replays an earlier event id.
func Generate(cfg *Config) ([]types.EventRequest, error) {
	c := cfg.withDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible load, not security
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	out := make([]types.EventRequest, 0, c.NumEvents)
	for i := range c.NumEvents {
		if i > 0 && rng.Float64() < c.DuplicateRate {
			out = append(out, out[rng.IntN(i)])
			continue
		}
		kind := pickKind(rng)
		payload, err := payloadFor(rng, kind, i, day)
		if err != nil {
			return nil, err
		}
		out = append(out, types.EventRequest{
			ID:      uuid.NewSHA1(namespace, fmt.Appendf(nil, "%d/%d", c.Seed, i)).String(),
			Kind:    kind,
			OwnerID: fmt.Sprintf("owner-%04d", rng.IntN(c.Owners)),
			Payload: payload,
		})
	}
	return out, nil
}

func pickKind(rng *rand.Rand) model.EventKind {
	total := 0
	for _, w := range mix {
		total += w.weight
	}
	n := rng.IntN(total)
	for _, w := range mix {
		if n < w.weight {
			return w.kind
		}
		n -= w.weight
	}
	return mix[0].kind
}

func payloadFor(rng *rand.Rand, kind model.EventKind, i int, day time.Time) (json.RawMessage, error) {
	var v any
	switch kind {
	case model.KindWorkoutCompleted:
		v = model.WorkoutCompleted{
			WorkoutID:       fmt.Sprintf("w-%d", i),
			ActivityType:    activities[rng.IntN(len(activities))],
			DurationMinutes: 20 + rng.IntN(70),
		}
	case model.KindNutritionLogged:
		v = model.NutritionLogged{LogID: fmt.Sprintf("n-%d", i), Meal: meals[rng.IntN(len(meals))]}
	case model.KindAIWorkoutGenerated:
		v = model.AIWorkoutGenerated{WorkoutID: fmt.Sprintf("ai-%d", i)}
	case model.KindDailyGoalsMet:
		v = model.DailyGoalsMet{Date: day.AddDate(0, 0, rng.IntN(90)).Format(time.DateOnly)}
	case model.KindPersonalRecordAchieved:
		v = model.PersonalRecord{
			RecordID:     fmt.Sprintf("pr-%d", i),
			ExerciseName: exercises[rng.IntN(len(exercises))],
			Value:        float64(40 + rng.IntN(160)),
			Unit:         "kg",
		}
	case model.KindStreakMilestone:
		v = model.StreakMilestone{StreakDays: 7 * (1 + rng.IntN(8))}
	default:
		return nil, fmt.Errorf("no generator for kind %q", kind)
	}
	return json.Marshal(v)
}
