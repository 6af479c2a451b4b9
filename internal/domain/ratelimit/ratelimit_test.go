package ratelimit_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	ratelimit "github.com/okian/topple/internal/domain/ratelimit"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSlidingWindowLimiter(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	Convey("Given a limiter allowing 5 requests per 60s", t, func() {
		now := base
		clock := func() time.Time { return now }

		l := ratelimit.New(context.Background(),
			ratelimit.WithWindow(60*time.Second),
			ratelimit.WithMaxRequests(5),
			ratelimit.WithClock(clock),
		)
		defer func() { _ = l.Close() }()

		Convey("When a new client sends its first request", func() {
			d, err := l.Allow(context.Background(), "10.0.0.1")

			Convey("Then it is permitted with remaining budget", func() {
				So(err, ShouldBeNil)
				So(d.Permitted, ShouldBeTrue)
				So(d.Remaining, ShouldEqual, 4)
			})
		})

		Convey("When a client exhausts its budget", func() {
			for i := 0; i < 5; i++ {
				d, err := l.Allow(context.Background(), "10.0.0.1")
				So(err, ShouldBeNil)
				So(d.Permitted, ShouldBeTrue)
				now = now.Add(time.Second)
			}

			d, err := l.Allow(context.Background(), "10.0.0.1")
			So(err, ShouldBeNil)

			Convey("Then the sixth request is denied", func() {
				So(d.Permitted, ShouldBeFalse)
				So(d.Remaining, ShouldEqual, 0)
			})

			Convey("Then ResetAt points at the oldest stamp's expiry", func() {
				So(d.ResetAt.Equal(base.Add(60*time.Second)), ShouldBeTrue)
			})

			Convey("And another client is unaffected", func() {
				other, err := l.Allow(context.Background(), "10.0.0.2")
				So(err, ShouldBeNil)
				So(other.Permitted, ShouldBeTrue)
			})

			Convey("And the budget frees up as stamps slide out", func() {
				// First stamp was at base; step past base+60s.
				now = base.Add(61 * time.Second)
				again, err := l.Allow(context.Background(), "10.0.0.1")
				So(err, ShouldBeNil)
				So(again.Permitted, ShouldBeTrue)
			})
		})

		Convey("When the window fully elapses", func() {
			for i := 0; i < 5; i++ {
				l.Allow(context.Background(), "10.0.0.1")
			}
			now = now.Add(2 * time.Minute)

			d, err := l.Allow(context.Background(), "10.0.0.1")

			Convey("Then the client has a fresh budget", func() {
				So(err, ShouldBeNil)
				So(d.Permitted, ShouldBeTrue)
				So(d.Remaining, ShouldEqual, 4)
			})
		})

		Convey("When the context is already canceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			d, err := l.Allow(ctx, "10.0.0.1")

			Convey("Then the context error surfaces, not a denial", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(d.Permitted, ShouldBeFalse)
			})

			Convey("And no budget was consumed", func() {
				fresh, err := l.Allow(context.Background(), "10.0.0.1")
				So(err, ShouldBeNil)
				So(fresh.Permitted, ShouldBeTrue)
				So(fresh.Remaining, ShouldEqual, 4)
			})
		})

		Convey("When many clients arrive concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					id := fmt.Sprintf("10.0.1.%d", n)
					for j := 0; j < 3; j++ {
						l.Allow(context.Background(), id)
					}
				}(i)
			}
			wg.Wait()

			Convey("Then every client is tracked independently", func() {
				So(l.ClientCount(), ShouldEqual, 50)
			})
		})
	})
}

func TestLimiterSweep(t *testing.T) {
	Convey("Given a limiter with a short window and grace period", t, func() {
		base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
		now := base
		clock := func() time.Time { return now }

		// Long cleanup interval; the test drives time through the clock and
		// relies on Allow/ClientCount only.
		l := ratelimit.New(context.Background(),
			ratelimit.WithWindow(time.Second),
			ratelimit.WithMaxRequests(1),
			ratelimit.WithGracePeriod(time.Second),
			ratelimit.WithCleanupInterval(10*time.Millisecond),
			ratelimit.WithClock(clock),
		)
		defer func() { _ = l.Close() }()

		Convey("When clients go idle past window plus grace", func() {
			l.Allow(context.Background(), "a")
			l.Allow(context.Background(), "b")
			So(l.ClientCount(), ShouldEqual, 2)

			now = base.Add(5 * time.Second)

			Convey("Then the sweeper eventually drops them", func() {
				deadline := time.Now().Add(2 * time.Second)
				for l.ClientCount() > 0 && time.Now().Before(deadline) {
					time.Sleep(20 * time.Millisecond)
				}
				So(l.ClientCount(), ShouldEqual, 0)
			})
		})
	})
}
