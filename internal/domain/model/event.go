// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"time"
)

// EventKind names the activity an event reports.
type EventKind string

// Known event kinds.
const (
	KindWorkoutCompleted       EventKind = "workout_completed"
	KindPersonalRecordAchieved EventKind = "personal_record_achieved"
	KindNutritionLogged        EventKind = "nutrition_logged"
	KindAIWorkoutGenerated     EventKind = "ai_workout_generated"
	KindDailyGoalsMet          EventKind = "daily_goals_met"
	KindStreakMilestone        EventKind = "streak_milestone"
)

// KnownKinds lists every kind with a handler, in a stable order.
func KnownKinds() []EventKind {
	return []EventKind{
		KindWorkoutCompleted,
		KindPersonalRecordAchieved,
		KindNutritionLogged,
		KindAIWorkoutGenerated,
		KindDailyGoalsMet,
		KindStreakMilestone,
	}
}

// Event is one row of the durable event queue. Producers insert it; only
// the dispatcher mutates Processed, ProcessedAt, RetryCount, ScheduledFor
// and ErrorMessage. Rows are never deleted.
type Event struct {
	ID           string          `json:"id"`
	Kind         EventKind       `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	OwnerID      string          `json:"owner_id"`
	Processed    bool            `json:"processed"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	ScheduledFor time.Time       `json:"scheduled_for"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Eligible reports whether the event may be dispatched at now.
func (e *Event) Eligible(now time.Time) bool {
	return !e.Processed && !e.ScheduledFor.After(now) && e.RetryCount < e.MaxRetries
}

// Exhausted reports whether the event used every retry without succeeding.
// Nothing dispatches an exhausted event again.
func (e *Event) Exhausted() bool {
	return !e.Processed && e.RetryCount >= e.MaxRetries
}

// Payloads carried by each kind. Reference ids feed the ledger idempotency key.

// WorkoutCompleted is the payload of KindWorkoutCompleted.
type WorkoutCompleted struct {
	WorkoutID       string `json:"workout_id"`
	ActivityType    string `json:"activity_type"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// PersonalRecord is the payload of KindPersonalRecordAchieved.
type PersonalRecord struct {
	RecordID     string  `json:"record_id"`
	ExerciseName string  `json:"exercise_name"`
	Value        float64 `json:"value"`
	Unit         string  `json:"unit,omitempty"`
}

// NutritionLogged is the payload of KindNutritionLogged.
type NutritionLogged struct {
	LogID string `json:"log_id"`
	Meal  string `json:"meal,omitempty"`
}

// AIWorkoutGenerated is the payload of KindAIWorkoutGenerated.
type AIWorkoutGenerated struct {
	WorkoutID string `json:"workout_id"`
}

// DailyGoalsMet is the payload of KindDailyGoalsMet.
type DailyGoalsMet struct {
	Date string `json:"date"` // YYYY-MM-DD in the owner's calendar
}

// StreakMilestone is the payload of KindStreakMilestone.
type StreakMilestone struct {
	StreakDays int `json:"streak_days"`
}
