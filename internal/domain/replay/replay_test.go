package replay_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	replay "github.com/okian/topple/internal/domain/replay"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryGuard(t *testing.T) {
	Convey("Given a new memory guard", t, func() {
		g := replay.NewMemoryGuard()

		Convey("When recording a fresh fingerprint", func() {
			seen := g.SeenAndRecord(context.Background(), "fp-1")

			Convey("Then it is not a replay and gets recorded", func() {
				So(seen, ShouldBeFalse)
				So(g.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same fingerprint arrives again", func() {
			g.SeenAndRecord(context.Background(), "fp-1")
			seen := g.SeenAndRecord(context.Background(), "fp-1")

			Convey("Then it is flagged as a replay", func() {
				So(seen, ShouldBeTrue)
				So(g.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a fingerprint is unrecorded", func() {
			g.SeenAndRecord(context.Background(), "fp-1")
			g.Unrecord(context.Background(), "fp-1")

			Convey("Then it can be recorded again", func() {
				So(g.Size(), ShouldEqual, 0)
				So(g.SeenAndRecord(context.Background(), "fp-1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown fingerprint", func() {
			g.Unrecord(context.Background(), "never-seen")

			Convey("Then nothing changes", func() {
				So(g.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a guard bounded to 3 fingerprints", t, func() {
		g := replay.NewMemoryGuard(replay.WithMaxSize(3))

		for i := 1; i <= 3; i++ {
			g.SeenAndRecord(context.Background(), fmt.Sprintf("fp-%d", i))
		}

		Convey("When a fourth fingerprint arrives", func() {
			g.SeenAndRecord(context.Background(), "fp-4")

			Convey("Then the size stays bounded", func() {
				So(g.Size(), ShouldEqual, 3)
			})

			Convey("Then the most recent prior entry was evicted, not the oldest", func() {
				// fp-3 was evicted to make room; fp-1 survives.
				So(g.SeenAndRecord(context.Background(), "fp-1"), ShouldBeTrue)
			})
		})
	})

	Convey("Given concurrent recorders", t, func() {
		g := replay.NewMemoryGuard()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					g.SeenAndRecord(context.Background(), fmt.Sprintf("fp-%d-%d", n, j))
				}
			}(i)
		}
		wg.Wait()

		Convey("Then every distinct fingerprint is held exactly once", func() {
			So(g.Size(), ShouldEqual, 1000)
		})
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given the fingerprint function", t, func() {
		Convey("Then it is stable for identical inputs", func() {
			a := replay.Fingerprint("sig", "ACE", 12.34)
			b := replay.Fingerprint("sig", "ACE", 12.34)
			So(a, ShouldEqual, b)
		})

		Convey("Then any field change yields a different key", func() {
			base := replay.Fingerprint("sig", "ACE", 12.34)
			So(replay.Fingerprint("other", "ACE", 12.34), ShouldNotEqual, base)
			So(replay.Fingerprint("sig", "BOB", 12.34), ShouldNotEqual, base)
			So(replay.Fingerprint("sig", "ACE", 12.35), ShouldNotEqual, base)
		})

		Convey("Then survival time is compared at two decimals", func() {
			So(replay.Fingerprint("sig", "ACE", 12.3), ShouldEqual,
				replay.Fingerprint("sig", "ACE", 12.30))
		})
	})
}
