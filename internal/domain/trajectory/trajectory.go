// Package trajectory turns per-frame camera detections into a 2D flight path
// (carry in yards against height in feet) for charting.
package trajectory

import (
	"cmp"
	"math"
	"slices"

	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/internal/domain/units"
)

const (
	// AnchorLabel marks the address-position detection used as the origin.
	AnchorLabel = "lock"

	// DefaultOriginDistanceM is used when the origin has no camera distance.
	DefaultOriginDistanceM = 2.0

	minPoints = 2
)

// Reconstruct keeps real detections and anchor points, orders them by frame
// and derives carry from the change in camera distance and height from the
// launch speed (mph) and vertical launch angle (degrees) over elapsed time.
// It returns nil when fewer than two detections qualify. Points that come
// out negative are dropped. The output depends only on the arguments.
func Reconstruct(detections []model.Detection, speed, vla float64) []model.TrajectoryPoint {
	pts := make([]model.Detection, 0, len(detections))
	for _, d := range detections {
		if d.IsReal || d.Label == AnchorLabel {
			pts = append(pts, d)
		}
	}
	if len(pts) < minPoints {
		return nil
	}
	slices.SortStableFunc(pts, func(a, b model.Detection) int { return cmp.Compare(a.Frame, b.Frame) })

	origin := pts[0]
	originDist, ok := origin.Distance()
	if !ok {
		originDist = DefaultOriginDistanceM
	}

	rad := units.Radians(vla)
	cosVLA, sinVLA := math.Cos(rad), math.Sin(rad)
	velocity := speed * units.MPHToMetersPerSecond

	out := make([]model.TrajectoryPoint, 0, len(pts))
	for _, p := range pts {
		dist, ok := p.Distance()
		if !ok {
			dist = originDist
		}
		t := math.Max(0, (p.TimeMS-origin.TimeMS)/1000)
		carryM := math.Max(0, (originDist-dist)*cosVLA)
		heightM := math.Max(0, velocity*sinVLA*t-0.5*units.Gravity*t*t)

		pt := model.TrajectoryPoint{
			CarryYards:     units.Round(carryM*units.MetersToYards, 1),
			HeightFeet:     units.Round(heightM*units.MetersToFeet, 1),
			ElapsedSeconds: t,
			PixelX:         clone(p.PixelX),
			PixelY:         clone(p.PixelY),
			Radius:         clone(p.Radius),
			RawDistanceM:   clone(p.RawDistanceM),
			FitDistanceM:   clone(p.FitDistanceM),
			Frame:          p.Frame,
			TimeMS:         p.TimeMS,
			IsReal:         p.IsReal,
		}
		if p.Label != "" {
			label := p.Label
			pt.Label = &label
		}
		// Written as a positive test so NaN is dropped too.
		if !(pt.CarryYards >= 0 && pt.HeightFeet >= 0) {
			continue
		}
		out = append(out, pt)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
