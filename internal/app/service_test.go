package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/repforge/internal/adapters/http/api"
	"github.com/okian/repforge/internal/adapters/mq/queue"
	service "github.com/okian/repforge/internal/app"
	"github.com/okian/repforge/internal/config"
	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func memoryConfig() *config.Config {
	cfg := config.New()
	cfg.Store = config.StoreMemory
	cfg.Partitions = 2
	return cfg
}

func workout(id, owner, workoutID, activity string) model.Event {
	return model.Event{
		ID:           id,
		Kind:         model.KindWorkoutCompleted,
		OwnerID:      owner,
		Payload:      json.RawMessage(`{"workout_id":"` + workoutID + `","activity_type":"` + activity + `"}`),
		MaxRetries:   3,
		CreatedAt:    t0,
		ScheduledFor: t0,
	}
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service over the memory store", t, func() {
		_ = logger.Init()
		ctx := context.Background()
		svc := service.New(memoryConfig(),
			service.WithManualDispatch(),
			service.WithClock(func() time.Time { return t0.Add(time.Minute) }),
		)

		Convey("Calls before Start are rejected as unavailable", func() {
			err := svc.Insert(ctx, workout("e1", "u1", "w1", "strength"))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(err, api.ErrUnavailable), ShouldBeTrue)

			_, err = svc.RunOnce(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			stats, err := svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(stats["started"], ShouldBeFalse)
		})

		Convey("When started", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			Reset(func() { _ = svc.Stop(ctx) })

			Convey("Events flow through to the ledger", func() {
				So(svc.SetTier(ctx, "u2", model.TierPremium), ShouldBeNil)
				So(svc.Insert(ctx, workout("e1", "u1", "w1", "strength")), ShouldBeNil)
				So(svc.Insert(ctx, workout("e2", "u2", "w2", "strength")), ShouldBeNil)
				So(svc.Insert(ctx, model.Event{
					ID: "e3", Kind: model.KindNutritionLogged, OwnerID: "u1",
					Payload: json.RawMessage(`{"log_id":"n1"}`), MaxRetries: 3,
					CreatedAt: t0, ScheduledFor: t0,
				}), ShouldBeNil)

				sum, err := svc.RunOnce(ctx)
				So(err, ShouldBeNil)
				So(sum.Partitions, ShouldEqual, 2)
				So(sum.Processed, ShouldEqual, 3)

				bal, err := svc.Balance(ctx, "u1")
				So(err, ShouldBeNil)
				So(bal.String(), ShouldEqual, "35")

				bal, err = svc.Balance(ctx, "u2")
				So(err, ShouldBeNil)
				So(bal.String(), ShouldEqual, "75")

				entries, err := svc.Entries(ctx, "u1", 10)
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 2)

				e, err := svc.Get(ctx, "e1")
				So(err, ShouldBeNil)
				So(e.Processed, ShouldBeTrue)

				stats, err := svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(stats["started"], ShouldBeTrue)
				So(stats["queue"], ShouldResemble, queue.Stats{Total: 3, Processed: 3})
			})

			Convey("A replayed event id is rejected as a duplicate", func() {
				So(svc.Insert(ctx, workout("e1", "u1", "w1", "strength")), ShouldBeNil)
				err := svc.Insert(ctx, workout("e1", "u1", "w1", "strength"))
				So(errors.Is(err, queue.ErrDuplicateEvent), ShouldBeTrue)
			})

			Convey("A malformed event ends up exhausted after its retries", func() {
				bad := workout("bad", "u1", "w1", "strength")
				bad.Payload = json.RawMessage(`{"workout_id":`)
				bad.MaxRetries = 1
				So(svc.Insert(ctx, bad), ShouldBeNil)

				sum, err := svc.RunOnce(ctx)
				So(err, ShouldBeNil)
				So(sum.Failed, ShouldEqual, 1)

				ex, err := svc.Exhausted(ctx, 10)
				So(err, ShouldBeNil)
				So(len(ex), ShouldEqual, 1)
				So(ex[0].ID, ShouldEqual, "bad")
			})

			Convey("Notifications and tiers are readable", func() {
				So(svc.Insert(ctx, model.Event{
					ID: "s1", Kind: model.KindStreakMilestone, OwnerID: "u3",
					Payload: json.RawMessage(`{"streak_days":7}`), MaxRetries: 3,
					CreatedAt: t0, ScheduledFor: t0,
				}), ShouldBeNil)
				_, err := svc.RunOnce(ctx)
				So(err, ShouldBeNil)

				ns, err := svc.ListNotifications(ctx, "u3", 10)
				So(err, ShouldBeNil)
				So(len(ns), ShouldEqual, 1)

				tier, err := svc.TierOf(ctx, "u3")
				So(err, ShouldBeNil)
				So(tier, ShouldEqual, model.TierEssential)
			})

			Convey("Stop makes it unavailable again", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				_, err := svc.Balance(ctx, "u1")
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestServiceStartFailures(t *testing.T) {
	Convey("Given broken configurations", t, func() {
		ctx := context.Background()

		Convey("An invalid config is rejected", func() {
			cfg := memoryConfig()
			cfg.Partitions = 0
			err := service.New(cfg).Start(ctx)
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("A bad cron spec is rejected", func() {
			cfg := memoryConfig()
			cfg.CycleSchedule = "whenever"
			err := service.New(cfg).Start(ctx)
			So(err, ShouldNotBeNil)
		})

		Convey("A scheduled service starts and stops cleanly", func() {
			cfg := memoryConfig()
			cfg.CycleSchedule = "@every 1h"
			svc := service.New(cfg)
			So(svc.Start(ctx), ShouldBeNil)

			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			So(svc.Stop(stopCtx), ShouldBeNil)
			So(svc.Stop(stopCtx), ShouldBeNil)
		})
	})
}

func TestPolicyFromConfig(t *testing.T) {
	Convey("Given a config with custom award tables", t, func() {
		cfg := config.New()
		cfg.WorkoutBasePoints = map[string]float64{"rowing": 60}
		cfg.DefaultWorkoutPoints = 20
		cfg.TierMultipliers = map[string]float64{"plus": 2}

		p := service.PolicyFromConfig(cfg)

		Convey("The policy reflects them", func() {
			So(p.WorkoutBase("rowing").String(), ShouldEqual, "60")
			So(p.WorkoutBase("climbing").String(), ShouldEqual, "20")
			So(p.TierMultiplier(model.TierPlus).String(), ShouldEqual, "2")
			So(p.StreakWindow(), ShouldEqual, 7*24*time.Hour)
		})
	})
}
