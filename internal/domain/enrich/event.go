package enrich

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/internal/domain/reference"
	"github.com/okian/shotmatch/internal/domain/units"
)

// MaxTrackPoints bounds the detections accepted with one shot.
const MaxTrackPoints = 4096

// BallData holds the launch values. Every field is optional.
type BallData struct {
	Speed         *float64 `json:"Speed,omitempty"`
	VLA           *float64 `json:"VLA,omitempty"`
	HLA           *float64 `json:"HLA,omitempty"`
	TotalSpin     *float64 `json:"TotalSpin,omitempty"`
	BackSpin      *float64 `json:"BackSpin,omitempty"`
	SideSpin      *float64 `json:"SideSpin,omitempty"`
	SpinAxis      *float64 `json:"SpinAxis,omitempty"`
	CarryDistance *float64 `json:"CarryDistance,omitempty"`
}

// ClubData is accepted but not used for matching.
type ClubData struct {
	Speed *float64 `json:"Speed,omitempty"`
}

// ShotDataOptions carries the message flags.
type ShotDataOptions struct {
	ContainsBallData          bool `json:"ContainsBallData"`
	ContainsClubData          bool `json:"ContainsClubData"`
	LaunchMonitorIsReady      bool `json:"LaunchMonitorIsReady"`
	LaunchMonitorBallDetected bool `json:"LaunchMonitorBallDetected"`
	IsHeartBeat               bool `json:"IsHeartBeat"`
}

// Event is one shot message as posted by the launch-monitor connector.
type Event struct {
	DeviceID         string            `json:"DeviceID,omitempty"`
	Units            string            `json:"Units,omitempty"`
	ShotNumber       int               `json:"ShotNumber,omitempty" validate:"gte=0"`
	APIVersion       string            `json:"APIversion,omitempty"`
	BallData         *BallData         `json:"BallData,omitempty"`
	ClubData         *ClubData         `json:"ClubData,omitempty"`
	ShotDataOptions  *ShotDataOptions  `json:"ShotDataOptions,omitempty"`
	TrackPointsCount *int              `json:"TrackPointsCount,omitempty" validate:"omitempty,gte=0"`
	TrackPoints      []model.Detection `json:"TrackPoints,omitempty" validate:"max=4096"`
}

var validate = validator.New()

// Decode reads one event. Anything that does not decode into an Event, or
// breaks its bounds, wraps ErrMalformedEvent.
func Decode(r io.Reader) (Event, error) {
	var ev Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, fmt.Errorf("%w: empty body", ErrMalformedEvent)
		}
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := validate.Struct(ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return ev, nil
}

// IsHeartbeat reports a keepalive message.
func (e Event) IsHeartbeat() bool {
	return e.ShotDataOptions != nil && e.ShotDataOptions.IsHeartBeat
}

// Identity returns a key for duplicate detection when the sender numbers its
// shots.
func (e Event) Identity() (string, bool) {
	if e.ShotNumber <= 0 {
		return "", false
	}
	return e.DeviceID + "#" + strconv.Itoa(e.ShotNumber), true
}

// Metrics resolves the measured values:
//
//	speed, vla, hla: field, else 0; one decimal
//	spin:            TotalSpin, else BackSpin, else 0; whole rpm
//	carry:           CarryDistance, else the reference carry estimate; whole yards
func (e Event) Metrics() model.Metrics {
	var b BallData
	if e.BallData != nil {
		b = *e.BallData
	}
	speed := units.Round(or(b.Speed), 1)
	vla := units.Round(or(b.VLA), 1)

	spin := or(b.BackSpin)
	if b.TotalSpin != nil {
		spin = *b.TotalSpin
	}
	carry := reference.EstimateCarry(speed, vla)
	if b.CarryDistance != nil {
		carry = units.Round(*b.CarryDistance, 0)
	}
	return model.Metrics{
		Speed: speed,
		VLA:   vla,
		HLA:   units.Round(or(b.HLA), 1),
		Carry: carry,
		Spin:  units.Round(spin, 0),
	}
}

// TrackPointCount is TrackPointsCount when sent, else the number of track
// points when the array was sent, else nil.
func (e Event) TrackPointCount() *int {
	if e.TrackPointsCount != nil {
		n := *e.TrackPointsCount
		return &n
	}
	if e.TrackPoints != nil {
		n := len(e.TrackPoints)
		return &n
	}
	return nil
}

func or(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
