package rewards

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/domain/points"
	"github.com/shopspring/decimal"
)

// Input is everything a handler may read.
type Input struct {
	Event model.Event
	Tier  model.Tier
	// RecentActivity counts the owner's prior ledger entries of the
	// handler's window kind inside its window. The event being handled is
	// not included.
	RecentActivity int
	Now            time.Time
}

// Outcome lists the writes the caller must apply for one event.
type Outcome struct {
	Entries       []model.LedgerEntry
	Notifications []model.Notification
}

// Handler is the strategy for one event kind.
type Handler interface {
	Kind() model.EventKind
	Handle(in Input) (Outcome, error)
}

// Windowed is implemented by handlers whose award depends on recent activity.
// The caller counts ledger entries of kind created within span before now.
type Windowed interface {
	Window() (kind model.EventKind, span time.Duration)
}

// Registry routes event kinds to handlers.
type Registry struct {
	handlers map[model.EventKind]Handler
}

// NewRegistry registers a handler for every known kind under p.
func NewRegistry(p *Policy) *Registry {
	if p == nil {
		p = NewPolicy()
	}
	r := &Registry{handlers: make(map[model.EventKind]Handler)}
	r.Register(workoutHandler{p: p})
	r.Register(personalRecordHandler{p: p})
	r.Register(flatHandler{kind: model.KindNutritionLogged, bonus: p.nutrition, ref: nutritionRef, desc: "Logged nutrition"})
	r.Register(flatHandler{kind: model.KindAIWorkoutGenerated, bonus: p.aiWorkout, ref: aiWorkoutRef, desc: "Generated an AI workout"})
	r.Register(flatHandler{kind: model.KindDailyGoalsMet, bonus: p.dailyGoals, ref: dailyGoalsRef, desc: "Met daily goals"})
	r.Register(streakMilestoneHandler{p: p})
	return r
}

// Register adds or replaces the handler for h.Kind().
func (r *Registry) Register(h Handler) {
	r.handlers[h.Kind()] = h
}

// Lookup returns the handler for kind.
func (r *Registry) Lookup(kind model.EventKind) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []model.EventKind {
	out := make([]model.EventKind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type workoutHandler struct{ p *Policy }

func (workoutHandler) Kind() model.EventKind { return model.KindWorkoutCompleted }

func (h workoutHandler) Window() (model.EventKind, time.Duration) {
	return model.KindWorkoutCompleted, h.p.streakWindow
}

func (h workoutHandler) Handle(in Input) (Outcome, error) {
	var pl model.WorkoutCompleted
	if err := decode(in, h.Kind(), &pl); err != nil {
		return Outcome{}, err
	}
	ms := model.Multipliers{}
	if in.RecentActivity+1 >= h.p.streakThreshold {
		ms = append(ms, model.Multiplier{Name: "streak", Factor: h.p.streakFactor})
	}
	activity := normalizeActivity(pl.ActivityType)
	if activity == "" {
		activity = "workout"
	}
	e := entry(in, 0, refOr(in, pl.WorkoutID), h.p.WorkoutBase(activity), ms,
		h.p.TierMultiplier(in.Tier), fmt.Sprintf("Completed %s workout", activity))
	return Outcome{Entries: []model.LedgerEntry{e}}, nil
}

type personalRecordHandler struct{ p *Policy }

func (personalRecordHandler) Kind() model.EventKind { return model.KindPersonalRecordAchieved }

func (h personalRecordHandler) Handle(in Input) (Outcome, error) {
	var pl model.PersonalRecord
	if err := decode(in, h.Kind(), &pl); err != nil {
		return Outcome{}, err
	}
	exercise := pl.ExerciseName
	if exercise == "" {
		exercise = "an exercise"
	}
	e := entry(in, 0, refOr(in, pl.RecordID), h.p.personalRecord, model.Multipliers{}, flat,
		"Personal record on "+exercise)
	content := fmt.Sprintf("You set a new personal record on %s", exercise)
	if pl.Value > 0 {
		content += fmt.Sprintf(": %s %s", strconv.FormatFloat(pl.Value, 'f', -1, 64), pl.Unit)
	}
	content += fmt.Sprintf(". +%s points.", e.Points.StringFixed(points.Places))
	n := notification(in, 0, "New personal record!", content, "achievement")
	return Outcome{Entries: []model.LedgerEntry{e}, Notifications: []model.Notification{n}}, nil
}

type streakMilestoneHandler struct{ p *Policy }

func (streakMilestoneHandler) Kind() model.EventKind { return model.KindStreakMilestone }

func (h streakMilestoneHandler) Handle(in Input) (Outcome, error) {
	var pl model.StreakMilestone
	if err := decode(in, h.Kind(), &pl); err != nil {
		return Outcome{}, err
	}
	if pl.StreakDays <= 0 {
		return Outcome{}, fmt.Errorf("streak_days %d: %w", pl.StreakDays, ErrInvalidPayload)
	}
	// Owners can reach the same day count again, so each milestone event is
	// its own activity.
	ms := model.Multipliers{{Name: "milestone", Factor: MilestoneFactor(pl.StreakDays)}}
	e := entry(in, 0, in.Event.ID, h.p.streakMilestone, ms, flat,
		fmt.Sprintf("Reached a %d-day streak", pl.StreakDays))
	n := notification(in, 0, fmt.Sprintf("%d-day streak!", pl.StreakDays),
		fmt.Sprintf("You kept your streak going for %d days. +%s points.", pl.StreakDays, e.Points.StringFixed(points.Places)),
		"streak")
	return Outcome{Entries: []model.LedgerEntry{e}, Notifications: []model.Notification{n}}, nil
}

// MilestoneFactor is 1 + floor(days/7) × 0.1.
func MilestoneFactor(days int) decimal.Decimal {
	weeks := int64(days / 7)
	return decimal.NewFromInt(1).Add(decimal.New(weeks, -1))
}

// flatHandler awards a fixed bonus with no multipliers.
type flatHandler struct {
	kind  model.EventKind
	bonus decimal.Decimal
	ref   func(json.RawMessage) (string, error)
	desc  string
}

func (h flatHandler) Kind() model.EventKind { return h.kind }

func (h flatHandler) Handle(in Input) (Outcome, error) {
	if err := validate(in, h.kind); err != nil {
		return Outcome{}, err
	}
	ref, err := h.ref(in.Event.Payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %v: %w", h.kind, err, ErrInvalidPayload)
	}
	e := entry(in, 0, refOr(in, ref), h.bonus, model.Multipliers{}, flat, h.desc)
	return Outcome{Entries: []model.LedgerEntry{e}}, nil
}

func nutritionRef(raw json.RawMessage) (string, error) {
	var pl model.NutritionLogged
	err := unmarshal(raw, &pl)
	return pl.LogID, err
}

func aiWorkoutRef(raw json.RawMessage) (string, error) {
	var pl model.AIWorkoutGenerated
	err := unmarshal(raw, &pl)
	return pl.WorkoutID, err
}

func dailyGoalsRef(raw json.RawMessage) (string, error) {
	var pl model.DailyGoalsMet
	if err := unmarshal(raw, &pl); err != nil {
		return "", err
	}
	if pl.Date != "" {
		if _, err := time.Parse(time.DateOnly, pl.Date); err != nil {
			return "", err
		}
	}
	return pl.Date, nil
}

// flat is the tier rate of awards that do not scale with subscription.
var flat = decimal.NewFromInt(1) //nolint:gochecknoglobals // immutable value

func validate(in Input, kind model.EventKind) error {
	if in.Event.Kind != kind {
		return fmt.Errorf("%s handled as %s: %w", in.Event.Kind, kind, ErrKindMismatch)
	}
	if in.Event.OwnerID == "" {
		return fmt.Errorf("event %s: %w", in.Event.ID, ErrMissingOwner)
	}
	return nil
}

func decode(in Input, kind model.EventKind, dst any) error {
	if err := validate(in, kind); err != nil {
		return err
	}
	if err := unmarshal(in.Event.Payload, dst); err != nil {
		return fmt.Errorf("%s: %v: %w", kind, err, ErrInvalidPayload)
	}
	return nil
}

func unmarshal(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// refOr falls back to the event id so every entry carries an idempotency key.
func refOr(in Input, ref string) string {
	if ref != "" {
		return ref
	}
	return in.Event.ID
}

// derivedID is stable per (event, scope, index), so replaying an event
// yields the same ids.
func derivedID(eventID, scope string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(eventID+"/"+scope+"/"+strconv.Itoa(i))).String()
}

func entry(in Input, i int, ref string, base decimal.Decimal, ms model.Multipliers, tier decimal.Decimal, desc string) model.LedgerEntry {
	return model.LedgerEntry{
		ID:                  derivedID(in.Event.ID, "ledger", i),
		OwnerID:             in.Event.OwnerID,
		TransactionType:     model.TransactionEarned,
		ActivityKind:        in.Event.Kind,
		ActivityReferenceID: ref,
		BasePoints:          base,
		Multipliers:         ms,
		TierMultiplier:      tier,
		Points:              points.ComputePoints(base, ms, tier),
		Description:         desc,
		CreatedAt:           in.Now,
	}
}

func notification(in Input, i int, title, content, category string) model.Notification {
	return model.Notification{
		ID:        derivedID(in.Event.ID, "notification", i),
		OwnerID:   in.Event.OwnerID,
		Title:     title,
		Content:   content,
		Category:  category,
		Kind:      string(in.Event.Kind),
		CreatedAt: in.Now,
	}
}
