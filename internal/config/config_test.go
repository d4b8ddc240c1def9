package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/repforge/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreSQLite)
			convey.So(cfg.BatchSize, convey.ShouldEqual, 50)
			convey.So(cfg.RetryBackoff(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.StreakWindow(), convey.ShouldEqual, 7*24*time.Hour)
			convey.So(cfg.UnknownKindPolicy, convey.ShouldEqual, "ack")
			convey.So(cfg.WorkoutBasePoints["strength"], convey.ShouldEqual, 50)
			convey.So(cfg.TierMultipliers["premium"], convey.ShouldEqual, 1.5)
			convey.So(cfg.Validate(context.Background()), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with bad values", t, func() {
		ctx := context.Background()
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown store", func(c *config.Config) { c.Store = "redis" }},
			{"zero batch", func(c *config.Config) { c.BatchSize = 0 }},
			{"negative backoff", func(c *config.Config) { c.RetryBackoffSeconds = -1 }},
			{"zero retries", func(c *config.Config) { c.DefaultMaxRetries = 0 }},
			{"zero partitions", func(c *config.Config) { c.Partitions = 0 }},
			{"bad policy", func(c *config.Config) { c.UnknownKindPolicy = "drop" }},
			{"zero streak window", func(c *config.Config) { c.StreakWindowDays = 0 }},
			{"negative tier rate", func(c *config.Config) { c.TierMultipliers["plus"] = -1 }},
		}
		for _, tc := range cases {
			convey.Convey("Then "+tc.name+" is rejected", func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate(ctx)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then the memory store needs no database path", func() {
			cfg := config.New()
			cfg.Store = config.StoreMemory
			cfg.DatabasePath = ""
			convey.So(cfg.Validate(ctx), convey.ShouldBeNil)
		})
	})
}
