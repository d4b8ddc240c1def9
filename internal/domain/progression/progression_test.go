package progression_test

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/okian/repforge/internal/domain/progression"
	. "github.com/smartystreets/goconvey/convey"
)

func basePlan() progression.Plan {
	return progression.Plan{
		ExerciseID:            "bench",
		Method:                progression.MethodLinear,
		Phase:                 progression.PhaseBuild,
		BaseWeight:            60,
		TargetWeight:          80,
		Increment:             2.5,
		CurrentSets:           3,
		TargetSets:            4,
		CurrentReps:           8,
		TargetReps:            12,
		TargetRPERange:        [2]float64{7, 8},
		SuccessRate:           90,
		WeeksSinceProgression: 3,
	}
}

func TestEvaluate(t *testing.T) {
	Convey("Given a linear plan ready to progress", t, func() {
		plan := basePlan()
		snap := progression.Snapshot{ExerciseID: "bench", EstimatedOneRepMax: 100}

		Convey("Then the weight goes up by the increment", func() {
			r, err := progression.Evaluate(plan, snap)
			So(err, ShouldBeNil)
			So(r.Action, ShouldEqual, progression.ActionIncreaseWeight)
			So(r.Confidence, ShouldEqual, 0.85)
			So(r.SuggestedWeight, ShouldEqual, 82.5)
			So(r.ExerciseID, ShouldEqual, "bench")
		})

		Convey("When a plateau is detected at 95% success", func() {
			plan.SuccessRate = 95
			snap.PlateauDetected = true
			r, err := progression.Evaluate(plan, snap)
			So(err, ShouldBeNil)
			So(r.Action, ShouldEqual, progression.ActionDeload)
			So(r.Confidence, ShouldEqual, 0.9)
			So(r.SuggestedWeight, ShouldEqual, 72)
		})

		Convey("When form degrades", func() {
			snap.FormDegradation = true
			r, _ := progression.Evaluate(plan, snap)
			So(r.Action, ShouldEqual, progression.ActionDeload)
			So(r.Message, ShouldContainSubstring, "form")
		})

		Convey("When the success rate is below 70", func() {
			plan.SuccessRate = 69.9
			r, _ := progression.Evaluate(plan, snap)
			So(r.Action, ShouldEqual, progression.ActionMaintain)
			So(r.Confidence, ShouldEqual, 0.8)
		})

		Convey("When progress came too recently", func() {
			plan.WeeksSinceProgression = 2
			r, _ := progression.Evaluate(plan, snap)
			So(r.Action, ShouldEqual, progression.ActionContinue)
			So(r.Confidence, ShouldEqual, 0.75)
		})

		Convey("When success is between 70 and 85", func() {
			plan.SuccessRate = 80
			r, _ := progression.Evaluate(plan, snap)
			So(r.Action, ShouldEqual, progression.ActionContinue)
		})

		Convey("When the plan uses double progression", func() {
			plan.Method = progression.MethodDoubleProgression
			r, _ := progression.Evaluate(plan, snap)
			So(r.Action, ShouldEqual, progression.ActionIncreaseReps)
			So(r.Confidence, ShouldEqual, 0.8)
			So(r.SuggestedReps, ShouldEqual, 10)

			plan.CurrentReps = 11
			r, _ = progression.Evaluate(plan, snap)
			So(r.SuggestedReps, ShouldEqual, 12)

			Convey("Then reaching the target reps moves on to the weight", func() {
				plan.CurrentReps = 12
				r, _ := progression.Evaluate(plan, snap)
				So(r.Action, ShouldEqual, progression.ActionIncreaseWeight)
				So(r.Confidence, ShouldEqual, 0.8)
				So(r.SuggestedReps, ShouldEqual, 0)
				So(r.SuggestedWeight, ShouldEqual, 82.5)
			})
		})

		Convey("When the plan is percentage based", func() {
			plan.Method = progression.MethodPercentageBased
			r, _ := progression.Evaluate(plan, snap)
			So(r.Action, ShouldEqual, progression.ActionIncreaseIntensity)
			So(r.Confidence, ShouldEqual, 0.9)
			So(r.SuggestedWeight, ShouldEqual, 85)

			snap.EstimatedOneRepMax = 0
			r, _ = progression.Evaluate(plan, snap)
			So(r.SuggestedWeight, ShouldEqual, 84)
		})

		Convey("When the method is unknown", func() {
			plan.Method = "wave"
			r, _ := progression.Evaluate(plan, snap)
			So(r.Action, ShouldEqual, progression.ActionMaintain)
			So(r.Confidence, ShouldEqual, 0.7)
		})

		Convey("When the plan is malformed", func() {
			bad := []func(p *progression.Plan){
				func(p *progression.Plan) { p.SuccessRate = 101 },
				func(p *progression.Plan) { p.SuccessRate = -1 },
				func(p *progression.Plan) { p.WeeksSinceProgression = -1 },
				func(p *progression.Plan) { p.Increment = -2.5 },
				func(p *progression.Plan) { p.TargetReps = -1 },
				func(p *progression.Plan) { p.TargetRPERange = [2]float64{9, 7} },
			}
			for _, mutate := range bad {
				p := basePlan()
				mutate(&p)
				_, err := progression.Evaluate(p, snap)
				So(errors.Is(err, progression.ErrInvalidPlan), ShouldBeTrue)
			}
		})
	})
}

func TestDeloadOutranksProgress(t *testing.T) {
	properties := gopter.NewProperties(nil)
	methods := []progression.Method{
		progression.MethodLinear,
		progression.MethodDoubleProgression,
		progression.MethodPercentageBased,
		"unknown",
	}

	properties.Property("plateau or form loss always deloads", prop.ForAll(
		func(success float64, weeks int, m int, plateau bool) bool {
			plan := basePlan()
			plan.SuccessRate = success
			plan.WeeksSinceProgression = weeks
			plan.Method = methods[m]
			snap := progression.Snapshot{PlateauDetected: plateau, FormDegradation: !plateau, EstimatedOneRepMax: 120}
			r, err := progression.Evaluate(plan, snap)
			return err == nil && r.Action == progression.ActionDeload && r.Confidence >= 0 && r.Confidence <= 1
		},
		gen.Float64Range(0, 100),
		gen.IntRange(0, 52),
		gen.IntRange(0, len(methods)-1),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
