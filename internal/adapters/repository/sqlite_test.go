package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/okian/repforge/internal/adapters/mq/queue"
	"github.com/okian/repforge/internal/adapters/repository"
	"github.com/okian/repforge/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func openMemory(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	s, err := repository.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func event(id, owner string, created time.Time) model.Event {
	return model.Event{
		ID:         id,
		Kind:       model.KindWorkoutCompleted,
		Payload:    json.RawMessage(`{"workout_id":"` + id + `","activity_type":"strength"}`),
		OwnerID:    owner,
		MaxRetries: 3,
		CreatedAt:  created,
	}
}

func TestSQLiteLedger(t *testing.T) {
	Convey("Given a SQLite ledger", t, func() {
		ledgerContract(func() repository.LedgerStore { return openMemory(t) })
	})
}

func TestSQLiteNotificationsAndTiers(t *testing.T) {
	Convey("Given SQLite notification and tier stores", t, func() {
		s := openMemory(t)
		notificationContract(s.Notifications())
		tierContract(s)
	})
}

func TestSQLiteEventQueue(t *testing.T) {
	Convey("Given a SQLite event queue", t, func() {
		ctx := context.Background()
		s := openMemory(t)
		So(s.Ping(ctx), ShouldBeNil)

		So(s.Insert(ctx, event("b", "o1", t0.Add(time.Minute))), ShouldBeNil)
		So(s.Insert(ctx, event("a", "o1", t0)), ShouldBeNil)
		So(s.Insert(ctx, event("c", "o2", t0.Add(time.Minute))), ShouldBeNil)

		Convey("Due orders by created_at then insertion", func() {
			es, err := s.Due(ctx, queue.DueQuery{Now: t0.Add(time.Hour), Limit: 10})
			So(err, ShouldBeNil)
			So(ids(es), ShouldResemble, []string{"a", "b", "c"})
			So(string(es[0].Payload), ShouldContainSubstring, "strength")
			So(es[0].ScheduledFor.Equal(t0), ShouldBeTrue)
		})

		Convey("Due honours the limit and the clock", func() {
			es, _ := s.Due(ctx, queue.DueQuery{Now: t0.Add(time.Hour), Limit: 1})
			So(ids(es), ShouldResemble, []string{"a"})
			es, _ = s.Due(ctx, queue.DueQuery{Now: t0.Add(time.Second), Limit: 10})
			So(ids(es), ShouldResemble, []string{"a"})
		})

		Convey("Partitions split owners without overlap", func() {
			seen := map[string]int{}
			for _, p := range model.Partitions(4) {
				es, err := s.Due(ctx, queue.DueQuery{Now: t0.Add(time.Hour), Limit: 10, Partition: p})
				So(err, ShouldBeNil)
				for _, e := range es {
					So(p.Contains(e.OwnerID), ShouldBeTrue)
					seen[e.ID]++
				}
			}
			So(seen, ShouldResemble, map[string]int{"a": 1, "b": 1, "c": 1})
		})

		Convey("A duplicate id is rejected", func() {
			err := s.Insert(ctx, event("a", "o1", t0))
			So(errors.Is(err, queue.ErrDuplicateEvent), ShouldBeTrue)
		})

		Convey("An invalid event is rejected", func() {
			e := event("z", "o1", t0)
			e.MaxRetries = 0
			So(errors.Is(s.Insert(ctx, e), queue.ErrInvalidEvent), ShouldBeTrue)
		})

		Convey("A processed event leaves the due set", func() {
			at := t0.Add(2 * time.Minute)
			So(s.MarkProcessed(ctx, "a", at), ShouldBeNil)
			got, err := s.Get(ctx, "a")
			So(err, ShouldBeNil)
			So(got.Processed, ShouldBeTrue)
			So(got.ProcessedAt.Equal(at), ShouldBeTrue)

			es, _ := s.Due(ctx, queue.DueQuery{Now: t0.Add(time.Hour), Limit: 10})
			So(ids(es), ShouldResemble, []string{"b", "c"})

			So(errors.Is(s.MarkProcessed(ctx, "a", at), queue.ErrAlreadyProcessed), ShouldBeTrue)
			So(errors.Is(s.MarkFailed(ctx, "a", queue.Failure{RetryCount: 1}), queue.ErrAlreadyProcessed), ShouldBeTrue)
			So(errors.Is(s.MarkProcessed(ctx, "nope", at), queue.ErrEventNotFound), ShouldBeTrue)
		})

		Convey("A failed event is rescheduled and eventually exhausted", func() {
			So(s.MarkFailed(ctx, "a", queue.Failure{
				RetryCount: 1, ErrorMessage: "boom", ScheduledFor: t0.Add(2 * time.Hour),
			}), ShouldBeNil)
			got, _ := s.Get(ctx, "a")
			So(got.RetryCount, ShouldEqual, 1)
			So(got.ErrorMessage, ShouldEqual, "boom")

			es, _ := s.Due(ctx, queue.DueQuery{Now: t0.Add(time.Hour), Limit: 10})
			So(ids(es), ShouldResemble, []string{"b", "c"})

			So(s.MarkFailed(ctx, "a", queue.Failure{RetryCount: 3, ErrorMessage: "boom"}), ShouldBeNil)
			es, _ = s.Due(ctx, queue.DueQuery{Now: t0.Add(24 * time.Hour), Limit: 10})
			So(ids(es), ShouldResemble, []string{"b", "c"})

			ex, err := s.Exhausted(ctx, 0)
			So(err, ShouldBeNil)
			So(ids(ex), ShouldResemble, []string{"a"})

			st, err := s.Stats(ctx)
			So(err, ShouldBeNil)
			So(st, ShouldResemble, queue.Stats{Total: 3, Pending: 2, Exhausted: 1})
		})

		Convey("Get reports missing events", func() {
			_, err := s.Get(ctx, "nope")
			So(errors.Is(err, queue.ErrEventNotFound), ShouldBeTrue)
		})
	})
}

func TestSQLiteFailures(t *testing.T) {
	Convey("Given a store over a mocked connection", t, func() {
		ctx := context.Background()
		db, mock, err := sqlmock.New()
		So(err, ShouldBeNil)
		defer db.Close()
		s := repository.NewSQLiteStore(db)

		Convey("Due wraps query errors", func() {
			mock.ExpectQuery("SELECT .* FROM events").WillReturnError(fmt.Errorf("disk I/O error"))
			_, err := s.Due(ctx, queue.DueQuery{Now: t0, Limit: 5})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "select due events")
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("A zero-row update on a processed row reports it", func() {
			mock.ExpectExec("UPDATE events SET processed").WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery("SELECT processed FROM events").
				WillReturnRows(sqlmock.NewRows([]string{"processed"}).AddRow(true))
			err := s.MarkProcessed(ctx, "e1", t0)
			So(errors.Is(err, queue.ErrAlreadyProcessed), ShouldBeTrue)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("A failed insert rolls the ledger append back", func() {
			mock.ExpectBegin()
			mock.ExpectExec("INSERT OR IGNORE INTO ledger_entries").WillReturnError(fmt.Errorf("database is locked"))
			mock.ExpectRollback()
			n, err := s.Append(ctx, earned("e1", "o1", model.KindWorkoutCompleted, "w1", "50", t0))
			So(err, ShouldNotBeNil)
			So(n, ShouldEqual, 0)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("Tier lookups fall back on missing rows", func() {
			mock.ExpectQuery("SELECT tier FROM tiers").WillReturnRows(sqlmock.NewRows([]string{"tier"}))
			tier, err := s.TierOf(ctx, "o1")
			So(err, ShouldBeNil)
			So(tier, ShouldEqual, model.TierEssential)
		})
	})
}

func ids(es []model.Event) []string {
	out := make([]string, len(es))
	for i := range es {
		out[i] = es[i].ID
	}
	return out
}
