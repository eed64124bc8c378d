package enrich

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/internal/domain/reference"
	"github.com/okian/shotmatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
	os.Exit(m.Run())
}

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

type failingProvider struct{ err error }

func (p failingProvider) Index(context.Context) (*reference.Index, error) { return nil, p.err }

func fixedEnricher(idx *reference.Index) *Enricher {
	at := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	return New(reference.Static(idx),
		WithClock(func() time.Time { return at }),
		WithIDGenerator(func() string { return "live-test" }),
		WithClub("Driver"),
	)
}

func TestDecode(t *testing.T) {
	Convey("Given raw shot payloads", t, func() {
		Convey("A full message decodes", func() {
			ev, err := Decode(strings.NewReader(`{
				"DeviceID":"ProRange","Units":"Yards","ShotNumber":7,"APIversion":"1",
				"BallData":{"Speed":120.44,"VLA":17.26,"HLA":-1.2,"TotalSpin":6534.6,"BackSpin":6400},
				"ClubData":{"Speed":90},
				"ShotDataOptions":{"ContainsBallData":true,"IsHeartBeat":false},
				"TrackPoints":[{"Frame":0,"Tms":0,"DFitM":2,"Label":"lock"},{"Frame":1,"Tms":10,"DFitM":1.8,"IsReal":true}]
			}`))
			So(err, ShouldBeNil)
			So(ev.DeviceID, ShouldEqual, "ProRange")
			So(*ev.BallData.Speed, ShouldEqual, 120.44)
			So(len(ev.TrackPoints), ShouldEqual, 2)
			id, ok := ev.Identity()
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, "ProRange#7")
		})

		Convey("Broken JSON is malformed", func() {
			_, err := Decode(strings.NewReader(`{"BallData":`))
			So(errors.Is(err, ErrMalformedEvent), ShouldBeTrue)
		})

		Convey("An empty body is malformed", func() {
			_, err := Decode(strings.NewReader(``))
			So(errors.Is(err, ErrMalformedEvent), ShouldBeTrue)
		})

		Convey("A wrongly typed field is malformed", func() {
			_, err := Decode(strings.NewReader(`{"BallData":{"Speed":"fast"}}`))
			So(errors.Is(err, ErrMalformedEvent), ShouldBeTrue)
		})

		Convey("A negative shot number is malformed", func() {
			_, err := Decode(strings.NewReader(`{"ShotNumber":-1}`))
			So(errors.Is(err, ErrMalformedEvent), ShouldBeTrue)
		})

		Convey("An unnumbered shot has no identity", func() {
			ev, err := Decode(strings.NewReader(`{"BallData":{"Speed":100}}`))
			So(err, ShouldBeNil)
			_, ok := ev.Identity()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestEventMetrics(t *testing.T) {
	Convey("Given events with partial ball data", t, func() {
		Convey("Total spin wins over back spin", func() {
			m := Event{BallData: &BallData{Speed: fp(100), VLA: fp(20), TotalSpin: fp(6500.4), BackSpin: fp(6000)}}.Metrics()
			So(m.Spin, ShouldEqual, 6500)
		})

		Convey("Back spin is used when total spin is absent", func() {
			m := Event{BallData: &BallData{Speed: fp(100), VLA: fp(20), BackSpin: fp(5999.5)}}.Metrics()
			So(m.Spin, ShouldEqual, 6000)
		})

		Convey("Spin defaults to zero", func() {
			m := Event{BallData: &BallData{Speed: fp(100), VLA: fp(20)}}.Metrics()
			So(m.Spin, ShouldEqual, 0)
		})

		Convey("Carry falls back to the estimate from rounded values", func() {
			m := Event{BallData: &BallData{Speed: fp(99.96), VLA: fp(19.96)}}.Metrics()
			So(m.Speed, ShouldEqual, 100)
			So(m.VLA, ShouldEqual, 20)
			So(m.Carry, ShouldEqual, 171)
		})

		Convey("Reported carry is rounded and kept", func() {
			m := Event{BallData: &BallData{Speed: fp(100), VLA: fp(20), CarryDistance: fp(162.5)}}.Metrics()
			So(m.Carry, ShouldEqual, 163)
		})

		Convey("Missing ball data yields zeros", func() {
			So(Event{}.Metrics(), ShouldResemble, model.Metrics{})
		})

		Convey("Track point count prefers the explicit count", func() {
			So(*Event{TrackPointsCount: ip(40), TrackPoints: make([]model.Detection, 3)}.TrackPointCount(), ShouldEqual, 40)
			So(*Event{TrackPoints: make([]model.Detection, 3)}.TrackPointCount(), ShouldEqual, 3)
			So(*Event{TrackPoints: []model.Detection{}}.TrackPointCount(), ShouldEqual, 0)
			So(Event{}.TrackPointCount(), ShouldBeNil)
		})
	})
}

func TestEnrich(t *testing.T) {
	ctx := context.Background()
	idx := reference.NewIndex([]model.ReferenceShot{
		{Speed: 90, VLA: 20, HLA: 1, Spin: 7000, Carry: 155},
		{Speed: 120.5, VLA: 17, HLA: -0.5, Spin: 6400, Carry: 201},
	})

	Convey("Given an enricher over a loaded index", t, func() {
		e := fixedEnricher(idx)

		Convey("A heartbeat is acknowledged without a shot", func() {
			res := e.Enrich(ctx, Event{
				ShotDataOptions: &ShotDataOptions{IsHeartBeat: true},
				BallData:        &BallData{Speed: fp(120), VLA: fp(17)},
			})
			So(res.Status, ShouldEqual, StatusHeartbeat)
			So(res.Shot, ShouldBeNil)
		})

		Convey("A zero-speed, zero-angle message is empty", func() {
			res := e.Enrich(ctx, Event{BallData: &BallData{Speed: fp(0.04), VLA: fp(0), TotalSpin: fp(3000)}})
			So(res.Status, ShouldEqual, StatusEmpty)
			So(res.Shot, ShouldBeNil)
		})

		Convey("A real shot is enriched with its nearest match", func() {
			res := e.Enrich(ctx, Event{
				BallData: &BallData{Speed: fp(120.44), VLA: fp(17.26), HLA: fp(-1.24), TotalSpin: fp(6534.4)},
				TrackPoints: []model.Detection{
					{Frame: 0, TimeMS: 0, FitDistanceM: fp(2), Label: "lock"},
					{Frame: 1, TimeMS: 10, FitDistanceM: fp(1.8), IsReal: true},
				},
			})

			So(res.Status, ShouldEqual, StatusOK)
			shot := res.Shot
			So(shot.ID, ShouldEqual, "live-test")
			So(shot.Club, ShouldEqual, "Driver")
			So(shot.Source, ShouldEqual, model.SourceLive)
			So(shot.Timestamp, ShouldEqual, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC))
			So(shot.Measured, ShouldResemble, model.Metrics{Speed: 120.4, VLA: 17.3, HLA: -1.2, Carry: 203, Spin: 6534})
			So(shot.Reference, ShouldResemble, &model.ReferenceShot{Speed: 120.5, VLA: 17, HLA: -0.5, Spin: 6400, Carry: 201})
			So(res.Match.Position, ShouldEqual, 1)
			So(*shot.TrackPoints, ShouldEqual, 2)
			So(len(shot.Trajectory), ShouldEqual, 2)

			Convey("And the attached reference is a copy", func() {
				shot.Reference.Speed = 1
				again := e.Enrich(ctx, Event{BallData: &BallData{Speed: fp(120.44), VLA: fp(17.26)}})
				So(again.Shot.Reference.Speed, ShouldEqual, 120.5)
			})
		})

		Convey("A shot without detections has no trajectory", func() {
			res := e.Enrich(ctx, Event{BallData: &BallData{Speed: fp(90), VLA: fp(20)}})
			So(res.Shot.Trajectory, ShouldBeNil)
			So(res.Shot.TrackPoints, ShouldBeNil)
		})
	})

	Convey("Given an enricher over an empty index", t, func() {
		e := fixedEnricher(reference.NewIndex(nil))
		res := e.Enrich(ctx, Event{BallData: &BallData{Speed: fp(120), VLA: fp(17)}})

		Convey("Then the shot has no reference", func() {
			So(res.Status, ShouldEqual, StatusOK)
			So(res.Shot.Reference, ShouldBeNil)
			So(res.Match, ShouldBeNil)
		})
	})

	Convey("Given an index provider that cannot deliver", t, func() {
		e := New(failingProvider{err: context.Canceled})
		res := e.Enrich(ctx, Event{BallData: &BallData{Speed: fp(120), VLA: fp(17)}})

		Convey("Then the shot is still produced without a reference", func() {
			So(res.Status, ShouldEqual, StatusOK)
			So(res.Shot.Reference, ShouldBeNil)
			So(res.Shot.ID, ShouldStartWith, "live-")
			So(res.Shot.Club, ShouldEqual, DefaultClub)
		})
	})
}
