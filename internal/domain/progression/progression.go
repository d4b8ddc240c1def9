// Package progression decides the next training action for one exercise
// from its plan and latest performance. Evaluation is a pure function.
package progression

import (
	"fmt"
	"math"
)

// Method is the overload scheme a plan follows.
type Method string

// Progression methods.
const (
	MethodLinear            Method = "linear"
	MethodDoubleProgression Method = "double_progression"
	MethodPercentageBased   Method = "percentage_based"
)

// Phase is the plan's position in its training block.
type Phase string

// Training phases.
const (
	PhaseBase   Phase = "base"
	PhaseBuild  Phase = "build"
	PhasePeak   Phase = "peak"
	PhaseDeload Phase = "deload"
)

// Action is the recommended next step.
type Action string

// Actions.
const (
	ActionContinue          Action = "continue"
	ActionIncreaseWeight    Action = "increase_weight"
	ActionIncreaseReps      Action = "increase_reps"
	ActionIncreaseIntensity Action = "increase_intensity"
	ActionDeload            Action = "deload"
	ActionMaintain          Action = "maintain"
)

// Rule thresholds.
const (
	DeloadFactor            = 0.9
	MaintainBelowSuccess    = 70.0
	ProgressAtSuccess       = 85.0
	ProgressAfterWeeks      = 3
	IntensityBracket        = 5.0
	FallbackIntensityGrowth = 1.05
)

// Plan is the per-exercise progression state. The engine never mutates it.
type Plan struct {
	ExerciseID            string     `json:"exercise_id"`
	Method                Method     `json:"method"`
	Phase                 Phase      `json:"phase"`
	BaseWeight            float64    `json:"base_weight"`
	TargetWeight          float64    `json:"target_weight"`
	Increment             float64    `json:"increment"`
	CurrentSets           int        `json:"current_sets"`
	TargetSets            int        `json:"target_sets"`
	CurrentReps           int        `json:"current_reps"`
	TargetReps            int        `json:"target_reps"`
	TargetRPERange        [2]float64 `json:"target_rpe_range"`
	SuccessRate           float64    `json:"success_rate"`
	WeeksSinceProgression int        `json:"weeks_since_progression"`
	DeloadRecommended     bool       `json:"deload_recommended"`
}

// Snapshot is the latest performance summary for the exercise.
type Snapshot struct {
	ExerciseID         string  `json:"exercise_id"`
	EstimatedOneRepMax float64 `json:"estimated_one_rep_max"`
	VolumeTrend        string  `json:"volume_trend"`
	IntensityTrend     string  `json:"intensity_trend"`
	FatiguePattern     string  `json:"fatigue_pattern"`
	FormDegradation    bool    `json:"form_degradation"`
	PlateauDetected    bool    `json:"plateau_detected"`
}

// Recommendation is the engine's output. Suggested values are zero when the
// action leaves them unchanged.
type Recommendation struct {
	ExerciseID      string  `json:"exercise_id"`
	Action          Action  `json:"action"`
	Message         string  `json:"message"`
	Confidence      float64 `json:"confidence"`
	SuggestedWeight float64 `json:"suggested_weight,omitempty"`
	SuggestedReps   int     `json:"suggested_reps,omitempty"`
}

// Validate rejects plans with values outside their domain.
func (p *Plan) Validate() error {
	switch {
	case p.SuccessRate < 0 || p.SuccessRate > 100 || math.IsNaN(p.SuccessRate):
		return fmt.Errorf("success_rate %v: %w", p.SuccessRate, ErrInvalidPlan)
	case p.WeeksSinceProgression < 0:
		return fmt.Errorf("weeks_since_progression %d: %w", p.WeeksSinceProgression, ErrInvalidPlan)
	case p.BaseWeight < 0 || p.TargetWeight < 0 || p.Increment < 0:
		return fmt.Errorf("negative load: %w", ErrInvalidPlan)
	case p.CurrentSets < 0 || p.TargetSets < 0 || p.CurrentReps < 0 || p.TargetReps < 0:
		return fmt.Errorf("negative sets or reps: %w", ErrInvalidPlan)
	case p.TargetRPERange[0] > p.TargetRPERange[1]:
		return fmt.Errorf("rpe range %v: %w", p.TargetRPERange, ErrInvalidPlan)
	}
	return nil
}

// Evaluate applies the rules in priority order; the first match wins:
// plateau or form loss deloads, low success maintains, sustained success
// progresses by method, anything else continues.
func Evaluate(plan Plan, snap Snapshot) (Recommendation, error) {
	if err := plan.Validate(); err != nil {
		return Recommendation{}, err
	}
	r := Recommendation{ExerciseID: plan.ExerciseID}
	load := plan.workingWeight()

	switch {
	case snap.PlateauDetected || snap.FormDegradation:
		r.Action, r.Confidence = ActionDeload, 0.9
		r.SuggestedWeight = round2(load * DeloadFactor)
		r.Message = deloadMessage(snap)
	case plan.SuccessRate < MaintainBelowSuccess:
		r.Action, r.Confidence = ActionMaintain, 0.8
		r.Message = fmt.Sprintf("Success rate %.0f%% is below %.0f%%. Practice at the current load.", plan.SuccessRate, MaintainBelowSuccess)
	case plan.WeeksSinceProgression >= ProgressAfterWeeks && plan.SuccessRate >= ProgressAtSuccess:
		progress(&r, plan, snap, load)
	default:
		r.Action, r.Confidence = ActionContinue, 0.75
		r.Message = "Keep the current prescription for one more week."
	}
	return r, nil
}

func progress(r *Recommendation, plan Plan, snap Snapshot, load float64) {
	switch plan.Method {
	case MethodLinear:
		r.Action, r.Confidence = ActionIncreaseWeight, 0.85
		r.SuggestedWeight = round2(load + plan.Increment)
		r.Message = fmt.Sprintf("Add %g to the working weight.", plan.Increment)
	case MethodDoubleProgression:
		if plan.TargetReps > 0 && plan.CurrentReps >= plan.TargetReps {
			// Top of the rep range: the next step is the weight increase.
			r.Action, r.Confidence = ActionIncreaseWeight, 0.8
			r.SuggestedWeight = round2(load + plan.Increment)
			r.Message = fmt.Sprintf("Target reps reached. Add %g and work back up the rep range.", plan.Increment)
			return
		}
		step := 1
		if plan.CurrentReps+2 <= plan.TargetReps {
			step = 2
		}
		r.Action, r.Confidence = ActionIncreaseReps, 0.8
		r.SuggestedReps = plan.CurrentReps + step
		r.Message = fmt.Sprintf("Add %d rep(s) per set before the next weight increase.", step)
	case MethodPercentageBased:
		r.Action, r.Confidence = ActionIncreaseIntensity, 0.9
		r.SuggestedWeight = nextBracket(load, snap.EstimatedOneRepMax)
		r.Message = "Move up to the next 5% intensity bracket."
	default:
		r.Action, r.Confidence = ActionMaintain, 0.7
		r.Message = fmt.Sprintf("Unknown progression method %q. Hold the current load.", plan.Method)
	}
}

// nextBracket returns the load of the next 5% step of the one-rep max above
// the current intensity. Without a max it grows the load by 5%.
func nextBracket(load, oneRepMax float64) float64 {
	if oneRepMax <= 0 {
		return round2(load * FallbackIntensityGrowth)
	}
	pct := load * 100 / oneRepMax
	next := math.Floor(pct/IntensityBracket)*IntensityBracket + IntensityBracket
	return round2(oneRepMax * next / 100)
}

func (p *Plan) workingWeight() float64 {
	if p.TargetWeight > 0 {
		return p.TargetWeight
	}
	return p.BaseWeight
}

func deloadMessage(s Snapshot) string {
	if s.PlateauDetected && s.FormDegradation {
		return "Plateau and form breakdown detected. Reduce load about 10% and focus on form."
	}
	if s.PlateauDetected {
		return "Plateau detected. Reduce load about 10% to recover."
	}
	return "Form breakdown detected. Reduce load about 10% and focus on form."
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
