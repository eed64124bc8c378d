package reference

import (
	"math"

	"github.com/okian/shotmatch/internal/domain/model"
)

// Distance weights: 2 mph of ball speed count as much as 1 degree of launch.
const (
	speedScale = 2.0
	vlaScale   = 1.0
)

// Index is an immutable, ordered set of reference shots. A nil *Index is a
// valid empty index.
type Index struct {
	shots []model.ReferenceShot
}

// NewIndex copies shots into a new index, keeping their order.
func NewIndex(shots []model.ReferenceShot) *Index {
	cp := make([]model.ReferenceShot, len(shots))
	copy(cp, shots)
	return &Index{shots: cp}
}

// Len returns the number of reference shots.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.shots)
}

// Shots returns a copy of the rows in source order.
func (i *Index) Shots() []model.ReferenceShot {
	if i == nil {
		return nil
	}
	cp := make([]model.ReferenceShot, len(i.shots))
	copy(cp, i.shots)
	return cp
}

// Match is the result of a nearest-match scan.
type Match struct {
	Shot     model.ReferenceShot
	Distance float64
	Position int
}

// Distance is the weighted squared distance between a reference shot and a
// query. Only speed and vertical launch angle take part.
func Distance(shot model.ReferenceShot, speed, vla float64) float64 {
	ds := (shot.Speed - speed) / speedScale
	dv := (shot.VLA - vla) / vlaScale
	return ds*ds + dv*dv
}

// Nearest scans every row and returns a copy of the closest one. The first
// row reaching the minimum wins. It reports false for an empty index or a
// query with no finite distance to any row.
//
// The scan is linear; at reference-set sizes and shot cadence it costs well
// under a millisecond.
func (i *Index) Nearest(speed, vla float64) (Match, bool) {
	if i.Len() == 0 {
		return Match{}, false
	}
	best := -1
	bestDist := math.Inf(1)
	for n := range i.shots {
		if d := Distance(i.shots[n], speed, vla); d < bestDist {
			bestDist = d
			best = n
		}
	}
	if best < 0 {
		return Match{}, false
	}
	return Match{Shot: i.shots[best], Distance: bestDist, Position: best}, true
}
