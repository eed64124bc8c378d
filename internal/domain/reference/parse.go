package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/internal/domain/units"
)

// Header names accepted for each column, compared case-insensitively.
var (
	speedHeaders = []string{"ball speed", "ballspeed", "speed"}
	vlaHeaders   = []string{"launch angle", "vertical launch angle", "vla"}
	hlaHeaders   = []string{"launch direction", "horizontal launch angle", "hla"}
	spinHeaders  = []string{"spin rate", "total spin", "spin"}
)

// ParseStats summarises one parse.
type ParseStats struct {
	Rows     int
	Accepted int
	Skipped  int
}

type columns struct {
	speed, vla, hla, spin int
}

// Parse reads a delimited reference dataset with one header row. Columns are
// located by name. Rows whose speed, launch angle or spin do not parse as
// finite numbers are skipped and counted; an unparseable launch direction is
// stored as 0. Speed and angles are rounded to one decimal, spin to whole rpm.
func Parse(r io.Reader) (*Index, ParseStats, error) {
	var stats ParseStats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, ErrEmptySource
	}
	if err != nil {
		return nil, stats, fmt.Errorf("read reference header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, stats, err
	}

	shots := make([]model.ReferenceShot, 0, 1024)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Rows++
				stats.Skipped++
				continue
			}
			return nil, stats, fmt.Errorf("read reference row: %w", err)
		}
		stats.Rows++
		shot, ok := parseRow(rec, cols)
		if !ok {
			stats.Skipped++
			continue
		}
		shots = append(shots, shot)
	}
	stats.Accepted = len(shots)
	return &Index{shots: shots}, stats, nil
}

func resolveColumns(header []string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	find := func(names []string) int {
		for _, n := range names {
			if i, ok := pos[n]; ok {
				return i
			}
		}
		return -1
	}
	c := columns{
		speed: find(speedHeaders),
		vla:   find(vlaHeaders),
		hla:   find(hlaHeaders),
		spin:  find(spinHeaders),
	}
	switch {
	case c.speed < 0:
		return c, fmt.Errorf("%w: %q", ErrMissingColumn, "Ball Speed")
	case c.vla < 0:
		return c, fmt.Errorf("%w: %q", ErrMissingColumn, "Launch Angle")
	case c.hla < 0:
		return c, fmt.Errorf("%w: %q", ErrMissingColumn, "Launch Direction")
	case c.spin < 0:
		return c, fmt.Errorf("%w: %q", ErrMissingColumn, "Spin Rate")
	}
	return c, nil
}

func parseRow(rec []string, c columns) (model.ReferenceShot, bool) {
	speed, ok := field(rec, c.speed)
	if !ok {
		return model.ReferenceShot{}, false
	}
	vla, ok := field(rec, c.vla)
	if !ok {
		return model.ReferenceShot{}, false
	}
	spin, ok := field(rec, c.spin)
	if !ok {
		return model.ReferenceShot{}, false
	}
	hla, _ := field(rec, c.hla)

	return model.ReferenceShot{
		Speed: units.Round(speed, 1),
		VLA:   units.Round(vla, 1),
		HLA:   units.Round(hla, 1),
		Spin:  units.Round(spin, 0),
		Carry: EstimateCarry(speed, vla),
	}, true
}

func field(rec []string, i int) (float64, bool) {
	if i >= len(rec) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
