package emitter_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/repforge/internal/adapters/http/api"
	service "github.com/okian/repforge/internal/app"
	"github.com/okian/repforge/internal/config"
	"github.com/okian/repforge/internal/domain/model"
	"github.com/okian/repforge/internal/emitter"
	"github.com/okian/repforge/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerate(t *testing.T) {
	Convey("Given a seeded emitter config", t, func() {
		cfg := &emitter.Config{NumEvents: 200, Owners: 7, Seed: 42}

		Convey("The same seed yields the same batch", func() {
			a, err := emitter.Generate(cfg)
			So(err, ShouldBeNil)
			b, err := emitter.Generate(cfg)
			So(err, ShouldBeNil)
			So(cmp.Diff(a, b), ShouldBeEmpty)
			So(len(a), ShouldEqual, 200)
		})

		Convey("Another seed yields another batch", func() {
			a, _ := emitter.Generate(cfg)
			other := *cfg
			other.Seed = 43
			b, _ := emitter.Generate(&other)
			So(cmp.Equal(a, b), ShouldBeFalse)
		})

		Convey("Events use known kinds and the configured owners", func() {
			events, _ := emitter.Generate(cfg)
			owners := map[string]bool{}
			ids := map[string]bool{}
			for _, e := range events {
				So(slices.Contains(model.KnownKinds(), e.Kind), ShouldBeTrue)
				So(len(e.Payload), ShouldBeGreaterThan, 2)
				owners[e.OwnerID] = true
				ids[e.ID] = true
			}
			So(len(owners), ShouldBeLessThanOrEqualTo, 7)
			So(len(ids), ShouldEqual, 200)
		})

		Convey("A duplicate rate replays earlier ids", func() {
			dup := *cfg
			dup.DuplicateRate = 0.3
			events, _ := emitter.Generate(&dup)
			ids := map[string]bool{}
			for _, e := range events {
				ids[e.ID] = true
			}
			So(len(ids), ShouldBeLessThan, 200)
		})

		Convey("Bad values are rejected", func() {
			bad := []emitter.Config{
				{NumEvents: -1},
				{Owners: -3},
				{DuplicateRate: 1.5},
				{Verify: true},
			}
			for i := range bad {
				_, err := emitter.Generate(&bad[i])
				So(errors.Is(err, emitter.ErrInvalidConfig), ShouldBeTrue)
			}
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		_ = logger.Init()
		ctx := context.Background()
		cfg := config.New()
		cfg.Store = config.StoreMemory
		cfg.Partitions = 3
		svc := service.New(cfg, service.WithManualDispatch())
		So(svc.Start(ctx), ShouldBeNil)
		mux := http.NewServeMux()
		api.NewServer(svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		Reset(func() {
			srv.Close()
			_ = svc.Stop(ctx)
		})

		Convey("When a batch with duplicates is emitted, dispatched and verified", func() {
			ecfg := &emitter.Config{
				BaseURL:       srv.URL,
				NumEvents:     300,
				Owners:        10,
				Workers:       8,
				Timeout:       5 * time.Second,
				Seed:          7,
				DuplicateRate: 0.1,
				Dispatch:      true,
				Verify:        true,
			}
			stats, err := emitter.Run(ctx, ecfg)

			Convey("Then every unique event lands and every ledger folds to its balance", func() {
				So(err, ShouldBeNil)
				events, _ := emitter.Generate(ecfg)
				unique := map[string]bool{}
				owners := map[string]bool{}
				for _, e := range events {
					unique[e.ID] = true
					owners[e.OwnerID] = true
				}
				So(stats.Generated, ShouldEqual, 300)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Accepted, ShouldEqual, len(unique))
				So(stats.Duplicate, ShouldEqual, 300-len(unique))
				So(stats.Processed, ShouldEqual, len(unique))
				So(stats.Verified, ShouldEqual, len(owners))
				So(stats.Mismatched, ShouldBeEmpty)
			})
		})

		Convey("When the service is unreachable", func() {
			_, err := emitter.Run(ctx, &emitter.Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
			So(err, ShouldNotBeNil)
		})
	})
}
