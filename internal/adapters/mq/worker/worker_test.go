package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/repforge/internal/adapters/mq/dispatcher"
	"github.com/okian/repforge/internal/adapters/mq/queue"
	"github.com/okian/repforge/internal/adapters/mq/worker"
	"github.com/okian/repforge/internal/adapters/repository"
	"github.com/okian/repforge/internal/domain/model"
	logging "github.com/okian/repforge/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// mockCycler counts runs and returns a canned report.
type mockCycler struct {
	partition model.Partition
	report    dispatcher.Report
	err       error
	runs      atomic.Int32
	ran       chan struct{}
	once      sync.Once
}

func newMockCycler(p model.Partition) *mockCycler {
	return &mockCycler{partition: p, ran: make(chan struct{})}
}

func (m *mockCycler) RunCycle(context.Context) (dispatcher.Report, error) {
	m.runs.Add(1)
	m.once.Do(func() { close(m.ran) })
	return m.report, m.err
}

func (m *mockCycler) Partition() model.Partition { return m.partition }

type mockStats struct{ calls atomic.Int32 }

func (s *mockStats) Stats(context.Context) (queue.Stats, error) {
	s.calls.Add(1)
	return queue.Stats{Pending: 3}, nil
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over four partitions", t, func() {
		_ = logging.Init()
		ctx := context.Background()

		parts := model.Partitions(4)
		mocks := make([]*mockCycler, len(parts))
		cyclers := make([]worker.Cycler, len(parts))
		for i, p := range parts {
			mocks[i] = newMockCycler(p)
			mocks[i].report = dispatcher.Report{Selected: 2, Processed: 1, Skipped: 1}
			cyclers[i] = mocks[i]
		}
		stats := &mockStats{}

		convey.Convey("When running once", func() {
			pool, err := worker.NewPool(cyclers, worker.WithStats(stats))
			convey.So(err, convey.ShouldBeNil)
			sum, err := pool.RunOnce(ctx)

			convey.Convey("Then every partition runs exactly once", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, m := range mocks {
					convey.So(m.runs.Load(), convey.ShouldEqual, 1)
				}
				convey.So(sum.Partitions, convey.ShouldEqual, 4)
				convey.So(sum.Selected, convey.ShouldEqual, 8)
				convey.So(sum.Processed, convey.ShouldEqual, 4)
				convey.So(sum.Skipped, convey.ShouldEqual, 4)
				convey.So(stats.calls.Load(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When one partition fails", func() {
			mocks[2].err = errors.New("no such table: events")
			mocks[1].report.Failures = []dispatcher.Failure{{EventID: "e9", Err: errors.New("boom")}}
			pool, _ := worker.NewPool(cyclers)
			sum, err := pool.RunOnce(ctx)

			convey.Convey("Then the others still run and the error names the partition", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "2/4")
				convey.So(sum.Selected, convey.ShouldEqual, 6)
				convey.So(sum.Failed, convey.ShouldEqual, 1)
				convey.So(sum.Failures[0].EventID, convey.ShouldEqual, "e9")
			})
		})

		convey.Convey("When started on a schedule", func() {
			pool, _ := worker.NewPool(cyclers, worker.WithSchedule("@every 1s"))
			convey.So(pool.Start(ctx), convey.ShouldBeNil)
			convey.So(errors.Is(pool.Start(ctx), worker.ErrAlreadyStarted), convey.ShouldBeTrue)

			select {
			case <-mocks[0].ran:
			case <-time.After(5 * time.Second):
			}
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then a tick reaches the partitions", func() {
				convey.So(mocks[0].runs.Load(), convey.ShouldBeGreaterThanOrEqualTo, 1)
				convey.So(errors.Is(pool.Shutdown(ctx), worker.ErrNotStarted), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the schedule is invalid", func() {
			pool, _ := worker.NewPool(cyclers, worker.WithSchedule("every now and then"))
			err := pool.Start(ctx)
			convey.So(errors.Is(err, worker.ErrInvalidSchedule), convey.ShouldBeTrue)
		})

		convey.Convey("When no cyclers are given", func() {
			_, err := worker.NewPool(nil)
			convey.So(errors.Is(err, worker.ErrNoCyclers), convey.ShouldBeTrue)
		})
	})
}

func TestPoolPartitionsCoverQueue(t *testing.T) {
	convey.Convey("Given partitioned dispatchers over one queue", t, func() {
		ctx := context.Background()
		events := queue.NewInMemoryQueue()
		stores := dispatcher.Stores{
			Events:        events,
			Ledger:        repository.NewMemoryLedger(),
			Notifications: repository.NewMemoryNotifications(),
			Tiers:         repository.NewMemoryTiers(),
		}
		owners := []string{"ana", "bo", "cy", "dee", "eli", "fay", "gus", "hal"}
		for i, o := range owners {
			convey.So(events.Insert(ctx, model.Event{
				ID: "e-" + o, Kind: model.KindNutritionLogged, OwnerID: o,
				Payload:    json.RawMessage(`{"log_id":"l1"}`),
				MaxRetries: 3, CreatedAt: time.Unix(int64(i), 0),
			}), convey.ShouldBeNil)
		}

		var cyclers []worker.Cycler
		for _, p := range model.Partitions(3) {
			d, err := dispatcher.New(stores, nil, dispatcher.WithPartition(p))
			convey.So(err, convey.ShouldBeNil)
			cyclers = append(cyclers, d)
		}
		pool, _ := worker.NewPool(cyclers, worker.WithStats(events))

		convey.Convey("One run processes every owner exactly once", func() {
			sum, err := pool.RunOnce(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(sum.Processed, convey.ShouldEqual, len(owners))

			st, _ := events.Stats(ctx)
			convey.So(st.Processed, convey.ShouldEqual, len(owners))
			convey.So(st.Pending, convey.ShouldEqual, 0)
		})
	})
}
