// Package model contains domain models passed between layers.
package model

import "time"

// SourceLive marks shots that arrived from the launch monitor.
const SourceLive = "live"

// ReferenceShot is one row of the reference dataset. Carry is derived at load
// time; the other fields come from the source.
type ReferenceShot struct {
	Speed float64 `json:"speed"` // mph
	VLA   float64 `json:"vla"`   // degrees
	HLA   float64 `json:"hla"`   // degrees
	Spin  float64 `json:"spin"`  // rpm
	Carry float64 `json:"carry"` // yards
}

// Metrics are the measured launch values of a live shot.
type Metrics struct {
	Speed float64 `json:"speed"`
	VLA   float64 `json:"vla"`
	HLA   float64 `json:"hla"`
	Carry float64 `json:"carry"`
	Spin  float64 `json:"spin"`
}

// Detection is one per-frame camera observation reported with a shot.
// Field names follow the launch monitor's track point records.
type Detection struct {
	Frame        int      `json:"Frame"`
	TimeMS       float64  `json:"Tms"`
	PixelX       *float64 `json:"X,omitempty"`
	PixelY       *float64 `json:"Y,omitempty"`
	Radius       *float64 `json:"R,omitempty"`
	RawDistanceM *float64 `json:"DRawM,omitempty"`
	FitDistanceM *float64 `json:"DFitM,omitempty"`
	IsReal       bool     `json:"IsReal"`
	Label        string   `json:"Label,omitempty"`
}

// Distance returns the fitted camera distance, else the raw one.
func (d Detection) Distance() (float64, bool) {
	if d.FitDistanceM != nil {
		return *d.FitDistanceM, true
	}
	if d.RawDistanceM != nil {
		return *d.RawDistanceM, true
	}
	return 0, false
}

// TrajectoryPoint is a reconstructed flight-path sample plus the raw fields it
// was derived from. Absent raw fields encode as null.
type TrajectoryPoint struct {
	CarryYards     float64  `json:"x"`
	HeightFeet     float64  `json:"y"`
	ElapsedSeconds float64  `json:"tSec"`
	PixelX         *float64 `json:"_px"`
	PixelY         *float64 `json:"_py"`
	Radius         *float64 `json:"_r"`
	RawDistanceM   *float64 `json:"_dRaw"`
	FitDistanceM   *float64 `json:"_dFit"`
	Frame          int      `json:"frame"`
	TimeMS         float64  `json:"tMs"`
	IsReal         bool     `json:"isReal"`
	Label          *string  `json:"label"`
}

// EnrichedShot is a live shot with its nearest reference match attached.
// Reference is nil when no reference data was available; Trajectory is nil
// when the shot had fewer than two usable detections.
type EnrichedShot struct {
	ID          string            `json:"id"`
	Club        string            `json:"club"`
	Timestamp   time.Time         `json:"timestamp"`
	Source      string            `json:"source"`
	Measured    Metrics           `json:"pr"`
	Reference   *ReferenceShot    `json:"tm"`
	TrackPoints *int              `json:"trackPts"`
	Trajectory  []TrajectoryPoint `json:"trajectory"`
}

// NeedsReference reports whether a backfill pass should look this shot up.
func (s EnrichedShot) NeedsReference() bool {
	return s.Reference == nil && s.Measured.Speed > 0
}

// LookupQuery is one nearest-match request.
type LookupQuery struct {
	Speed float64
	VLA   float64
}
