package shotreplay

import (
	"context"
	"fmt"

	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/pkg/logger"
)

// Mismatch is a row whose nearest match is not itself.
type Mismatch struct {
	Row  int
	Want model.ReferenceShot
	Got  *model.ReferenceShot
}

func (m Mismatch) String() string {
	if m.Got == nil {
		return fmt.Sprintf("row %d (%.1f mph, %.1f°): no match", m.Row, m.Want.Speed, m.Want.VLA)
	}
	return fmt.Sprintf("row %d (%.1f mph, %.1f°): matched %.1f mph, %.1f°",
		m.Row, m.Want.Speed, m.Want.VLA, m.Got.Speed, m.Got.VLA)
}

// verifyMatches compares each row with its lookup result on speed and VLA.
func verifyMatches(ctx context.Context, config *Config, rows []model.ReferenceShot, got []*model.ReferenceShot, stats *Stats) []Mismatch {
	var mismatches []Mismatch
	for i, row := range rows {
		var g *model.ReferenceShot
		if i < len(got) {
			g = got[i]
		}
		if g != nil && g.Speed == row.Speed && g.VLA == row.VLA {
			stats.Verified++
			continue
		}
		mm := Mismatch{Row: i, Want: row, Got: g}
		mismatches = append(mismatches, mm)
		if config.Verbose {
			logger.Get().Warn(ctx, "lookup mismatch", logger.String("detail", mm.String()))
		}
	}
	stats.Mismatched = len(mismatches)
	return mismatches
}
