package validate_test

import (
	"math"
	"strings"
	"testing"
	"time"

	validate "github.com/okian/topple/internal/domain/validate"
	. "github.com/smartystreets/goconvey/convey"
)

const validSignature = "a3f1b2c4d5e6f7089a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f6071"

func TestValidatorCheck(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-30 * time.Second).Format(time.RFC3339)

	Convey("Given a validator with default bounds", t, func() {
		v := validate.New()

		Convey("When checking a well-formed submission", func() {
			parsed, err := v.Check("ACE", 12.34, validSignature, ts, now)

			Convey("Then it passes and returns the parsed timestamp", func() {
				So(err, ShouldBeNil)
				So(parsed.IsZero(), ShouldBeFalse)
				So(now.Sub(parsed), ShouldEqual, 30*time.Second)
			})
		})

		Convey("When the player tag is malformed", func() {
			cases := []string{"", "ABCD", "ab", "A-1", "a"}
			for _, tag := range cases {
				_, err := v.Check(tag, 12.34, validSignature, ts, now)
				So(err, ShouldNotBeNil)
				So(validate.Reason(err), ShouldEqual, "invalid_player_tag")
			}
		})

		Convey("When the survival time is out of range", func() {
			for _, survival := range []float64{0, -1, 0.01, 20.01, 999, math.NaN(), math.Inf(1)} {
				_, err := v.Check("ACE", survival, validSignature, ts, now)
				So(err, ShouldNotBeNil)
				So(validate.Reason(err), ShouldEqual, "survival_time_out_of_range")
			}
		})

		Convey("When the survival time has sub-centisecond precision", func() {
			_, err := v.Check("ACE", 12.3456, validSignature, ts, now)

			Convey("Then it is rejected as implausible", func() {
				So(err, ShouldNotBeNil)
				So(validate.Reason(err), ShouldEqual, "survival_time_precision")
			})
		})

		Convey("When the survival time sits exactly on a bound", func() {
			for _, survival := range []float64{0.05, 20.0} {
				_, err := v.Check("ACE", survival, validSignature, ts, now)
				So(err, ShouldBeNil)
			}
		})

		Convey("When the session signature is malformed", func() {
			cases := []string{
				"",
				"abc123",
				strings.Repeat("z", 64),
				validSignature + "00",
			}
			for _, sig := range cases {
				_, err := v.Check("ACE", 12.34, sig, ts, now)
				So(err, ShouldNotBeNil)
				So(validate.Reason(err), ShouldEqual, "invalid_session_signature")
			}
		})

		Convey("When the client timestamp cannot be parsed", func() {
			_, err := v.Check("ACE", 12.34, validSignature, "yesterday at noon", now)

			So(err, ShouldNotBeNil)
			So(validate.Reason(err), ShouldEqual, "invalid_client_timestamp")
		})

		Convey("When the client clock is too far off", func() {
			stale := now.Add(-11 * time.Minute).Format(time.RFC3339)
			ahead := now.Add(11 * time.Minute).Format(time.RFC3339)

			for _, ts := range []string{stale, ahead} {
				_, err := v.Check("ACE", 12.34, validSignature, ts, now)
				So(err, ShouldNotBeNil)
				So(validate.Reason(err), ShouldEqual, "clock_skew_too_large")
			}
		})

		Convey("When the client clock is within the skew window", func() {
			near := now.Add(9 * time.Minute).Format(time.RFC3339)
			_, err := v.Check("ACE", 12.34, validSignature, near, now)
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a validator with custom bounds", t, func() {
		v := validate.New(
			validate.WithSurvivalBounds(1.0, 5.0),
			validate.WithClockSkew(time.Minute),
		)

		Convey("Then the custom survival range applies", func() {
			_, err := v.Check("ACE", 0.5, validSignature, ts, now)
			So(validate.Reason(err), ShouldEqual, "survival_time_out_of_range")

			_, err = v.Check("ACE", 3.25, validSignature, ts, now)
			So(err, ShouldBeNil)
		})

		Convey("Then the custom skew applies", func() {
			twoMinutes := now.Add(-2 * time.Minute).Format(time.RFC3339)
			_, err := v.Check("ACE", 3.25, validSignature, twoMinutes, now)
			So(validate.Reason(err), ShouldEqual, "clock_skew_too_large")
		})
	})
}

func TestValidationOrder(t *testing.T) {
	Convey("Given a submission with multiple defects", t, func() {
		v := validate.New()
		now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

		Convey("Then the first failing check wins", func() {
			// Bad tag and bad survival: tag is reported.
			_, err := v.Check("toolong", -1, "bad", "bad", now)
			So(validate.Reason(err), ShouldEqual, "invalid_player_tag")

			// Bad survival and bad signature: survival is reported.
			_, err = v.Check("ACE", -1, "bad", "bad", now)
			So(validate.Reason(err), ShouldEqual, "survival_time_out_of_range")

			// Bad signature and bad timestamp: signature is reported.
			_, err = v.Check("ACE", 12.34, "bad", "bad", now)
			So(validate.Reason(err), ShouldEqual, "invalid_session_signature")
		})
	})
}
