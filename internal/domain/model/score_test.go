package model_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/topple/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewScoreRecord(t *testing.T) {
	Convey("Given a validated submission", t, func() {
		received := time.Date(2026, 8, 25, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
		clientTS := received.Add(-10 * time.Second)
		sub := model.Submission{
			PlayerTag:        "ACE",
			SurvivalTime:     12.34,
			SessionSignature: "sig",
			ReceivedAt:       received,
		}

		Convey("When building a score record", func() {
			rec := model.NewScoreRecord(sub, clientTS)

			Convey("Then the submission fields carry over", func() {
				So(rec.PlayerTag, ShouldEqual, "ACE")
				So(rec.SurvivalTime, ShouldEqual, 12.34)
				So(rec.SessionSignature, ShouldEqual, "sig")
				So(rec.ClientTimestamp.Equal(clientTS), ShouldBeTrue)
			})

			Convey("Then the server timestamp is normalized to UTC", func() {
				So(rec.ServerTimestamp.Location(), ShouldEqual, time.UTC)
				So(rec.ServerTimestamp.Equal(received), ShouldBeTrue)
			})

			Convey("Then the submission id is a fresh UUID", func() {
				parsed, err := uuid.Parse(rec.SubmissionID)
				So(err, ShouldBeNil)
				So(parsed.String(), ShouldEqual, rec.SubmissionID)
			})
		})

		Convey("When building two records from the same submission", func() {
			a := model.NewScoreRecord(sub, clientTS)
			b := model.NewScoreRecord(sub, clientTS)

			Convey("Then they get distinct submission ids", func() {
				So(a.SubmissionID, ShouldNotEqual, b.SubmissionID)
			})
		})
	})
}
