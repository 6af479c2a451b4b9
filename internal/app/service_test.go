package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/topple/internal/adapters/repository/board"
	"github.com/okian/topple/internal/adapters/repository/ledger"
	service "github.com/okian/topple/internal/app"
	"github.com/okian/topple/internal/domain/model"
	"github.com/okian/topple/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

const validSignature = "a3f1b2c4d5e6f7089a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f6071"

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

// failingLedger wraps a real ledger and fails appends on demand.
type failingLedger struct {
	ledger.Ledger
	failAppend bool
}

func (f *failingLedger) Append(ctx context.Context, rec model.ScoreRecord) error {
	if f.failAppend {
		return fmt.Errorf("%w: disk full", ledger.ErrStorage)
	}
	return f.Ledger.Append(ctx, rec)
}

func newService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	base := []service.Option{
		service.WithLedgerPath(filepath.Join(t.TempDir(), "scores.db")),
		service.WithBoardSize(3),
		service.WithRateLimit(time.Minute, 100),
		service.WithClock(func() time.Time { return testNow }),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func submission(tag string, survival float64, sessionSeed string) model.Submission {
	sig := validSignature
	if sessionSeed != "" {
		// Vary the tail so each simulated game session is distinct.
		sig = validSignature[:64-len(sessionSeed)] + sessionSeed
	}
	return model.Submission{
		PlayerTag:        tag,
		SurvivalTime:     survival,
		SessionSignature: sig,
		ClientTimestamp:  testNow.Add(-10 * time.Second).Format(time.RFC3339),
		ClientID:         "10.0.0.1",
	}
}

func TestSubmitPipeline(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		svc := newService(t)

		Convey("When a valid first score arrives", func() {
			res, err := svc.Submit(ctx, submission("ACE", 12.34, "a1"))

			Convey("Then it is accepted, ranked and a personal best", func() {
				So(err, ShouldBeNil)
				So(res.Accepted, ShouldBeTrue)
				So(res.SubmissionID, ShouldNotBeEmpty)
				So(res.Rank, ShouldEqual, 1)
				So(res.PersonalBest, ShouldBeTrue)
				So(res.PersonalBestDelta, ShouldEqual, 12.34)
				So(res.SubmissionCount, ShouldEqual, 1)
				So(res.Message, ShouldEqual, "new #1 on the leaderboard")
			})
		})

		Convey("When a player improves their score", func() {
			_, err := svc.Submit(ctx, submission("ACE", 10.00, "a1"))
			So(err, ShouldBeNil)
			res, err := svc.Submit(ctx, submission("ACE", 12.50, "a2"))

			Convey("Then the delta is against the prior best", func() {
				So(err, ShouldBeNil)
				So(res.PersonalBest, ShouldBeTrue)
				So(res.PersonalBestDelta, ShouldAlmostEqual, 2.50, 0.001)
				So(res.SubmissionCount, ShouldEqual, 2)
				So(res.Rank, ShouldEqual, 1)
			})
		})

		Convey("When a player submits a worse score", func() {
			_, err := svc.Submit(ctx, submission("ACE", 12.50, "a1"))
			So(err, ShouldBeNil)
			res, err := svc.Submit(ctx, submission("ACE", 8.00, "a2"))

			Convey("Then it is recorded but not a personal best", func() {
				So(err, ShouldBeNil)
				So(res.Accepted, ShouldBeTrue)
				So(res.PersonalBest, ShouldBeFalse)
				So(res.Rank, ShouldEqual, 1) // still holds the prior slot
				So(res.Message, ShouldEqual, "score recorded; still ranked #1")
			})
		})

		Convey("When an invalid submission arrives", func() {
			_, err := svc.Submit(ctx, submission("toolong", 12.34, "a1"))

			Convey("Then it fails with a validation kind", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the same game session is replayed", func() {
			first, err := svc.Submit(ctx, submission("ACE", 12.34, "a1"))
			So(err, ShouldBeNil)
			_, err = svc.Submit(ctx, submission("ACE", 12.34, "a1"))

			Convey("Then the replay is rejected as a duplicate", func() {
				So(errors.Is(err, service.ErrDuplicate), ShouldBeTrue)
				So(svc.GetStats(ctx)["ledgerRecords"], ShouldEqual, 1)
				So(first.Accepted, ShouldBeTrue)
			})
		})

		Convey("When the board fills up", func() {
			for i, tag := range []string{"AAA", "BBB", "CCC"} {
				_, err := svc.Submit(ctx, submission(tag, 15.00-float64(i), fmt.Sprintf("f%d", i)))
				So(err, ShouldBeNil)
			}

			Convey("Then a lower score is recorded but unranked", func() {
				res, err := svc.Submit(ctx, submission("DDD", 1.00, "d1"))
				So(err, ShouldBeNil)
				So(res.Accepted, ShouldBeTrue)
				So(res.Rank, ShouldEqual, 0)
				So(res.Message, ShouldEqual, "score recorded but did not make the leaderboard")
			})

			Convey("And a higher score evicts the current worst", func() {
				res, err := svc.Submit(ctx, submission("DDD", 14.50, "d2"))
				So(err, ShouldBeNil)
				So(res.Rank, ShouldEqual, 2)

				_, err = svc.RankOf(ctx, "CCC")
				So(errors.Is(err, board.ErrNotRanked), ShouldBeTrue)
			})
		})
	})
}

func TestSubmitRateLimit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service allowing 2 submissions per minute", t, func() {
		svc := newService(t, service.WithRateLimit(time.Minute, 2))

		_, err := svc.Submit(ctx, submission("ACE", 10.00, "a1"))
		So(err, ShouldBeNil)
		_, err = svc.Submit(ctx, submission("ACE", 10.50, "a2"))
		So(err, ShouldBeNil)

		Convey("When the third submission arrives inside the window", func() {
			_, err := svc.Submit(ctx, submission("ACE", 11.00, "a3"))

			Convey("Then it is rate limited with a retry hint", func() {
				So(errors.Is(err, service.ErrRateLimited), ShouldBeTrue)
				var rl *service.RateLimitedError
				So(errors.As(err, &rl), ShouldBeTrue)
				So(rl.RetryAfter, ShouldBeGreaterThanOrEqualTo, time.Second)
			})

			Convey("And the denied session can be resubmitted later", func() {
				// The fingerprint must have been rolled back, otherwise the
				// retry would be misreported as a duplicate.
				_, err := svc.Submit(ctx, submission("ACE", 11.00, "a3"))
				So(errors.Is(err, service.ErrDuplicate), ShouldBeFalse)
				So(errors.Is(err, service.ErrRateLimited), ShouldBeTrue)
			})
		})

		Convey("When another client submits", func() {
			sub := submission("BOB", 9.00, "b1")
			sub.ClientID = "10.0.0.2"
			_, err := svc.Submit(ctx, sub)

			Convey("Then it is unaffected by the first client's quota", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestSubmitStorageFailure(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service whose ledger rejects appends", t, func() {
		inner, err := ledger.Open(filepath.Join(t.TempDir(), "scores.db"))
		So(err, ShouldBeNil)
		fl := &failingLedger{Ledger: inner, failAppend: true}
		svc := newService(t, service.WithLedger(fl))

		Convey("When a valid submission arrives", func() {
			_, err := svc.Submit(ctx, submission("ACE", 12.34, "a1"))

			Convey("Then the pipeline fails with a storage kind", func() {
				So(errors.Is(err, service.ErrStorage), ShouldBeTrue)
			})

			Convey("And the session may retry once storage recovers", func() {
				fl.failAppend = false
				res, err := svc.Submit(ctx, submission("ACE", 12.34, "a1"))
				So(err, ShouldBeNil)
				So(res.Accepted, ShouldBeTrue)
			})
		})
	})
}

func TestReadsAndRestart(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a few ranked players", t, func() {
		dbPath := filepath.Join(t.TempDir(), "scores.db")
		svc := newService(t, service.WithLedgerPath(dbPath))

		for i, tag := range []string{"AAA", "BBB", "CCC"} {
			_, err := svc.Submit(ctx, submission(tag, 15.00-float64(i), fmt.Sprintf("e%d", i)))
			So(err, ShouldBeNil)
		}

		Convey("When reading the top of the board", func() {
			top, err := svc.Top(ctx, 2)

			Convey("Then ranks come back contiguous and ordered", func() {
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 2)
				So(top[0].PlayerTag, ShouldEqual, "AAA")
				So(top[0].Rank, ShouldEqual, 1)
				So(top[1].PlayerTag, ShouldEqual, "BBB")
				So(top[1].Rank, ShouldEqual, 2)
			})
		})

		Convey("When reading board metadata", func() {
			size, lastUpdated, etag := svc.BoardMeta(ctx)

			So(size, ShouldEqual, 3)
			So(lastUpdated.IsZero(), ShouldBeFalse)
			So(etag, ShouldNotBeEmpty)

			Convey("And the etag is stable while the board is unchanged", func() {
				_, _, again := svc.BoardMeta(ctx)
				So(again, ShouldEqual, etag)
			})
		})

		Convey("When the service restarts on the same ledger", func() {
			svc.Stop()

			revived := service.New(
				service.WithLedgerPath(dbPath),
				service.WithBoardSize(3),
				service.WithClock(func() time.Time { return testNow }),
			)
			So(revived.Start(ctx), ShouldBeNil)
			defer revived.Stop()

			Convey("Then the leaderboard is rebuilt from the ledger", func() {
				slot, err := revived.RankOf(ctx, "AAA")
				So(err, ShouldBeNil)
				So(slot.Rank, ShouldEqual, 1)
				So(revived.GetStats(ctx)["boardEntries"], ShouldEqual, 3)
			})
		})
	})
}

func TestNotStarted(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New()

		Convey("Then every operation reports not started", func() {
			_, err := svc.Submit(context.Background(), submission("ACE", 10.00, ""))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			_, err = svc.Top(context.Background(), 5)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			_, err = svc.RankOf(context.Background(), "ACE")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}
