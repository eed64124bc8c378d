package reference

import (
	"errors"
	"strings"
	"testing"

	"github.com/okian/shotmatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParse(t *testing.T) {
	Convey("Given a reference CSV", t, func() {
		Convey("When columns are in a non-standard order", func() {
			src := "Spin Rate,Club,Launch Direction,Launch Angle,Ball Speed\n" +
				"6534.4,7i,-1.24,17.26,120.44\n" +
				"2650,Dr,0.5,11.0,167.0\n"

			idx, stats, err := Parse(strings.NewReader(src))

			Convey("Then rows are resolved by header name and normalized", func() {
				So(err, ShouldBeNil)
				So(stats.Accepted, ShouldEqual, 2)
				So(stats.Skipped, ShouldEqual, 0)
				So(idx.Shots(), ShouldResemble, []model.ReferenceShot{
					{Speed: 120.4, VLA: 17.3, HLA: -1.2, Spin: 6534, Carry: 203},
					{Speed: 167, VLA: 11, HLA: 0.5, Spin: 2650, Carry: 273},
				})
			})
		})

		Convey("When one row has a non-numeric speed", func() {
			src := "Ball Speed,Launch Angle,Launch Direction,Spin Rate\n" +
				"120,17,0,6500\n" +
				"fast,17,0,6500\n" +
				"130,15,1,5000\n" +
				"140,13,-1,4000\n"

			idx, stats, err := Parse(strings.NewReader(src))

			Convey("Then only that row is skipped", func() {
				So(err, ShouldBeNil)
				So(idx.Len(), ShouldEqual, 3)
				So(stats.Rows, ShouldEqual, 4)
				So(stats.Skipped, ShouldEqual, 1)
			})
		})

		Convey("When rows are short, blank or carry non-finite values", func() {
			src := "Ball Speed,Launch Angle,Launch Direction,Spin Rate\r\n" +
				"120,17\r\n" +
				"\r\n" +
				"NaN,17,0,6500\r\n" +
				"120,Inf,0,6500\r\n" +
				"120,17,0,\r\n" +
				"125,16,n/a,6000\r\n"

			idx, stats, err := Parse(strings.NewReader(src))

			Convey("Then they are skipped and a bad launch direction becomes zero", func() {
				So(err, ShouldBeNil)
				So(stats.Skipped, ShouldEqual, 4)
				So(idx.Shots(), ShouldResemble, []model.ReferenceShot{
					{Speed: 125, VLA: 16, HLA: 0, Spin: 6000, Carry: EstimateCarry(125, 16)},
				})
			})
		})

		Convey("When headers are padded and differently cased", func() {
			src := "\ufeff ball speed , LAUNCH ANGLE,Launch Direction , spin rate\n100,20,0,7000\n"

			idx, _, err := Parse(strings.NewReader(src))

			Convey("Then they still resolve", func() {
				So(err, ShouldBeNil)
				So(idx.Len(), ShouldEqual, 1)
				So(idx.Shots()[0].Carry, ShouldEqual, 171)
			})
		})

		Convey("When a required column is missing", func() {
			_, _, err := Parse(strings.NewReader("Ball Speed,Launch Angle,Spin Rate\n100,20,7000\n"))

			Convey("Then the whole source is rejected", func() {
				So(errors.Is(err, ErrMissingColumn), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "Launch Direction")
			})
		})

		Convey("When the source is empty", func() {
			_, _, err := Parse(strings.NewReader(""))

			Convey("Then ErrEmptySource is returned", func() {
				So(errors.Is(err, ErrEmptySource), ShouldBeTrue)
			})
		})
	})
}
