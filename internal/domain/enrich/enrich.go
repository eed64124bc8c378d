// Package enrich turns launch-monitor shot messages into enriched shots: it
// normalizes the measured values, attaches the nearest reference shot and
// reconstructs the flight path from any detections sent along.
package enrich

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/internal/domain/reference"
	"github.com/okian/shotmatch/internal/domain/trajectory"
	"github.com/okian/shotmatch/pkg/logger"
	"github.com/okian/shotmatch/pkg/metrics"
)

// Status is the acknowledgment sent back to the launch monitor.
type Status string

const (
	StatusOK        Status = "ok"
	StatusHeartbeat Status = "heartbeat"
	StatusEmpty     Status = "empty"
	StatusDuplicate Status = "duplicate"
)

// DefaultClub labels shots when no club is configured.
const DefaultClub = "7-Iron"

// IndexProvider hands out the reference index, waiting for it if needed.
type IndexProvider interface {
	Index(ctx context.Context) (*reference.Index, error)
}

// Result is the outcome of one Enrich call. Shot is set only for StatusOK.
type Result struct {
	Status Status
	Shot   *model.EnrichedShot
	Match  *reference.Match
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithClub sets the display label attached to shots.
func WithClub(club string) Option {
	return func(e *Enricher) {
		if club != "" {
			e.club = club
		}
	}
}

// WithClock overrides the shot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides shot id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Enricher) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Enricher) {
		if l != nil {
			e.log = l
		}
	}
}

// Enricher builds enriched shots. It is safe for concurrent use.
type Enricher struct {
	indexes IndexProvider
	club    string
	now     func() time.Time
	newID   func() string
	log     logger.Logger
}

// New creates an Enricher reading reference data from indexes.
func New(indexes IndexProvider, opts ...Option) *Enricher {
	e := &Enricher{
		indexes: indexes,
		club:    DefaultClub,
		now:     time.Now,
		newID:   func() string { return "live-" + uuid.NewString() },
		log:     logger.Get(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich classifies ev and, for a real shot, assembles the enriched record.
// Missing reference data or detections leave the matching fields nil; no
// outcome here is an error.
func (e *Enricher) Enrich(ctx context.Context, ev Event) Result {
	if ev.IsHeartbeat() {
		return Result{Status: StatusHeartbeat}
	}
	m := ev.Metrics()
	if m.Speed == 0 && m.VLA == 0 {
		return Result{Status: StatusEmpty}
	}
	start := time.Now()

	shot := &model.EnrichedShot{
		ID:          e.newID(),
		Club:        e.club,
		Timestamp:   e.now(),
		Source:      model.SourceLive,
		Measured:    m,
		TrackPoints: ev.TrackPointCount(),
		Trajectory:  trajectory.Reconstruct(ev.TrackPoints, m.Speed, m.VLA),
	}

	var match *reference.Match
	idx, err := e.indexes.Index(ctx)
	if err != nil {
		e.log.Warn(ctx, "reference index unavailable for shot", logger.String("id", shot.ID), logger.Error(err))
	}
	scan := time.Now()
	if found, ok := idx.Nearest(m.Speed, m.VLA); ok {
		match = &found
		ref := found.Shot
		shot.Reference = &ref
	}
	metrics.RecordLookup(metrics.LookupIngest, match != nil, distance(match), msSince(scan))
	metrics.RecordTrajectory(len(shot.Trajectory))

	fields := []logger.Field{
		logger.String("id", shot.ID),
		logger.Float64("speed", m.Speed),
		logger.Float64("vla", m.VLA),
	}
	if match != nil {
		vlaErr := m.VLA - match.Shot.VLA
		metrics.RecordVLAMatchError(math.Abs(vlaErr))
		fields = append(fields,
			logger.Float64("ref_speed", match.Shot.Speed),
			logger.Float64("ref_vla", match.Shot.VLA),
			logger.Float64("vla_error", vlaErr),
		)
	} else {
		fields = append(fields, logger.Bool("matched", false))
	}
	e.log.Info(ctx, "shot enriched", fields...)
	metrics.RecordEnrichmentLatency(msSince(start))

	return Result{Status: StatusOK, Shot: shot, Match: match}
}

func distance(m *reference.Match) float64 {
	if m == nil {
		return 0
	}
	return m.Distance
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
