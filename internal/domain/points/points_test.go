package points_test

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	model "github.com/okian/repforge/internal/domain/model"
	points "github.com/okian/repforge/internal/domain/points"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputePoints(t *testing.T) {
	Convey("Given a base award", t, func() {
		base := d("50")

		Convey("When no multipliers apply", func() {
			So(points.ComputePoints(base, nil, d("1")).String(), ShouldEqual, "50")
			So(points.Product(nil).String(), ShouldEqual, "1")
		})

		Convey("When streak and premium tier apply", func() {
			ms := model.Multipliers{{Name: "streak", Factor: d("1.2")}}
			So(points.ComputePoints(base, ms, d("1.5")).String(), ShouldEqual, "90")
		})

		Convey("When the product needs rounding", func() {
			ms := model.Multipliers{{Name: "a", Factor: d("1.111")}} // 5.555 before rounding
			So(points.ComputePoints(d("9.005400540054005"), nil, d("1")).String(), ShouldEqual, "9.01")
			So(points.ComputePoints(d("10"), ms, d("0.5")).String(), ShouldEqual, "5.56")
			So(points.Round(d("0.125")).String(), ShouldEqual, "0.13")
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given multipliers", t, func() {
		So(points.Validate(model.Multipliers{{Name: "ok", Factor: d("1.1")}}), ShouldBeNil)
		err := points.Validate(model.Multipliers{{Name: "bad", Factor: d("-1")}})
		So(errors.Is(err, points.ErrNegativeFactor), ShouldBeTrue)
	})
}

func TestBalance(t *testing.T) {
	Convey("Given a ledger", t, func() {
		entries := []model.LedgerEntry{
			{ID: "1", TransactionType: model.TransactionEarned, Points: d("12.50")},
			{ID: "2", TransactionType: model.TransactionEarned, Points: d("7.25")},
			{ID: "3", TransactionType: model.TransactionSpent, Points: d("5")},
		}

		Convey("Then the balance is the signed sum", func() {
			b, err := points.Balance(entries)
			So(err, ShouldBeNil)
			So(b.String(), ShouldEqual, "14.75")
		})

		Convey("Then an empty ledger is zero", func() {
			b, err := points.Balance(nil)
			So(err, ShouldBeNil)
			So(b.IsZero(), ShouldBeTrue)
		})

		Convey("When an entry has an unknown type", func() {
			entries = append(entries, model.LedgerEntry{ID: "4", TransactionType: "refund"})
			_, err := points.Balance(entries)
			So(errors.Is(err, points.ErrUnknownTxnType), ShouldBeTrue)
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given a persisted entry", t, func() {
		e := model.LedgerEntry{
			ID:             "e1",
			BasePoints:     d("40"),
			Multipliers:    model.Multipliers{{Name: "streak", Factor: d("1.2")}},
			TierMultiplier: d("0.5"),
			Points:         d("24"),
		}
		So(points.Verify(&e), ShouldBeNil)

		e.Points = d("24.01")
		So(errors.Is(points.Verify(&e), points.ErrPointsMismatch), ShouldBeTrue)
	})
}

func TestTierTable(t *testing.T) {
	Convey("Given the default tier table", t, func() {
		tt := points.NewTierTable()
		So(tt.Multiplier(model.TierEssential).String(), ShouldEqual, "0.5")
		So(tt.Multiplier(model.TierPlus).String(), ShouldEqual, "1")
		So(tt.Multiplier(model.TierPremium).String(), ShouldEqual, "1.5")
		So(tt.Multiplier("unknown").String(), ShouldEqual, "0.5")

		Convey("When configured rates override it", func() {
			tt = points.NewTierTable(points.WithTierMultipliersFromConfig(map[string]float64{
				"premium": 2,
				"plus":    -1,
			}))
			So(tt.Multiplier(model.TierPremium).String(), ShouldEqual, "2")
			So(tt.Multiplier(model.TierPlus).String(), ShouldEqual, "1")
		})
	})
}

func TestPointsReproducibleFromFields(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("stored points verify against their factors", prop.ForAll(
		func(baseCents int64, streak bool, tierIdx int) bool {
			tiers := []string{"0.5", "1.0", "1.5"}
			var ms model.Multipliers
			if streak {
				ms = append(ms, model.Multiplier{Name: "streak", Factor: d("1.2")})
			}
			e := model.LedgerEntry{
				BasePoints:     decimal.New(baseCents, -2),
				Multipliers:    ms,
				TierMultiplier: d(tiers[tierIdx]),
			}
			e.Points = points.ComputePoints(e.BasePoints, e.Multipliers, e.TierMultiplier)
			return points.Verify(&e) == nil && e.Points.Exponent() >= -points.Places
		},
		gen.Int64Range(0, 1_000_000),
		gen.Bool(),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t)
}
