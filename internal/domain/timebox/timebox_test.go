package timebox_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/okian/repforge/internal/domain/timebox"
	. "github.com/smartystreets/goconvey/convey"
)

func pool(n int, intensity timebox.Intensity) []timebox.Candidate {
	out := make([]timebox.Candidate, n)
	for i := range out {
		out[i] = timebox.Candidate{ID: fmt.Sprintf("ex-%02d", i), Modality: "strength", IntensityLevel: intensity}
	}
	return out
}

func TestBuild(t *testing.T) {
	Convey("Given 12 eligible exercises and 45 minutes", t, func() {
		plan, err := timebox.Build(pool(12, timebox.IntensityHigh), 45)
		So(err, ShouldBeNil)

		Convey("Then three supersets of four are labelled A, B, C", func() {
			So(plan.SupersetSize, ShouldEqual, 4)
			So(plan.Supersets, ShouldHaveLength, 3)
			labels := []string{}
			for _, ss := range plan.Supersets {
				labels = append(labels, ss.Label)
				So(ss.Slots, ShouldHaveLength, 4)
			}
			So(labels, ShouldResemble, []string{"A", "B", "C"})
		})

		Convey("Then only the last exercise of a group carries the long rest", func() {
			ss := plan.Supersets[1]
			So(ss.Slots[0].ExerciseID, ShouldEqual, "ex-04")
			for _, s := range ss.Slots[:3] {
				So(s.RestSeconds, ShouldEqual, 30)
			}
			So(ss.Slots[3].RestSeconds, ShouldEqual, 150)
			So(ss.Slots[0].Sets, ShouldEqual, 3)
			So(ss.Slots[0].RepsMin, ShouldEqual, 10)
			So(ss.Slots[0].RepsMax, ShouldEqual, 12)
			So(ss.Slots[0].TargetRPE, ShouldEqual, 7)
		})

		Convey("Then the estimate sums superset wall time", func() {
			So(timebox.SupersetSeconds(4), ShouldEqual, 480)
			So(plan.EstimatedSeconds, ShouldEqual, 3*480)
		})
	})

	Convey("Given a short session", t, func() {
		plan, err := timebox.Build(pool(20, timebox.IntensityModerate), 20)
		So(err, ShouldBeNil)
		So(plan.SupersetSize, ShouldEqual, 3)
		So(plan.Supersets, ShouldHaveLength, 3) // floor(20/6.5)
	})

	Convey("Given a pool with low intensity work", t, func() {
		p := append(pool(3, timebox.IntensityHigh), timebox.Candidate{ID: "walk", IntensityLevel: "LOW"})
		p = append(p, timebox.Candidate{ID: "row", IntensityLevel: timebox.IntensityModerate})
		plan, err := timebox.Build(p, 60)
		So(err, ShouldBeNil)
		So(plan.Supersets, ShouldHaveLength, 1)
		for _, s := range plan.Supersets[0].Slots {
			So(s.ExerciseID, ShouldNotEqual, "walk")
		}
		So(plan.Supersets[0].Slots[3].ExerciseID, ShouldEqual, "row")
	})

	Convey("Given fewer exercises than one superset", t, func() {
		plan, err := timebox.Build(pool(3, timebox.IntensityHigh), 45)
		So(err, ShouldBeNil)
		So(plan.Supersets, ShouldBeEmpty)
		So(plan.EstimatedSeconds, ShouldEqual, 0)
	})

	Convey("Given invalid input", t, func() {
		_, err := timebox.Build(pool(8, timebox.IntensityHigh), 0)
		So(errors.Is(err, timebox.ErrInvalidDuration), ShouldBeTrue)

		_, err = timebox.Build(pool(4, timebox.IntensityLow), 30)
		So(errors.Is(err, timebox.ErrEmptyPool), ShouldBeTrue)

		_, err = timebox.Build(nil, 30)
		So(errors.Is(err, timebox.ErrEmptyPool), ShouldBeTrue)

		_, err = timebox.Build([]timebox.Candidate{{IntensityLevel: timebox.IntensityHigh}}, 30)
		So(errors.Is(err, timebox.ErrInvalidCandidate), ShouldBeTrue)
	})
}

func TestLabelsAndBudget(t *testing.T) {
	Convey("Given superset indexes", t, func() {
		So(timebox.Label(0), ShouldEqual, "A")
		So(timebox.Label(25), ShouldEqual, "Z")
		So(timebox.Label(26), ShouldEqual, "AA")
		So(timebox.Label(27), ShouldEqual, "AB")
		So(timebox.Label(26*27), ShouldEqual, "AAA")
	})

	Convey("Given session lengths", t, func() {
		So(timebox.Budget(6), ShouldEqual, 0)
		So(timebox.Budget(13), ShouldEqual, 2)
		So(timebox.Budget(45), ShouldEqual, 6)
		So(timebox.Budget(65), ShouldEqual, 10)
		So(timebox.SupersetSize(34), ShouldEqual, 3)
		So(timebox.SupersetSize(35), ShouldEqual, 4)
	})
}

func TestBuildIsDeterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)
	levels := []timebox.Intensity{timebox.IntensityLow, timebox.IntensityModerate, timebox.IntensityHigh}

	properties.Property("same pool and duration give identical plans", prop.ForAll(
		func(picks []int, minutes int) bool {
			p := make([]timebox.Candidate, len(picks))
			for i, lv := range picks {
				p[i] = timebox.Candidate{ID: fmt.Sprintf("ex-%d", i), IntensityLevel: levels[lv]}
			}
			a, errA := timebox.Build(p, minutes)
			b, errB := timebox.Build(p, minutes)
			if (errA == nil) != (errB == nil) {
				return false
			}
			if diff := cmp.Diff(a, b); diff != "" {
				t.Log(diff)
				return false
			}
			return len(a.Supersets)*a.SupersetSize <= len(p)
		},
		gen.SliceOf(gen.IntRange(0, 2)),
		gen.IntRange(1, 180),
	))

	properties.TestingRun(t)
}
