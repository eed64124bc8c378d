package reference

import (
	"math"

	"github.com/okian/shotmatch/internal/domain/units"
)

// Carry model coefficients. Reference rows carry no measured distance, so the
// same mapping is applied to every row and to live shots that omit carry.
const (
	carryBase        = 1.55
	carryAngleSpan   = 45.0
	carryAngleWeight = 0.35
)

// EstimateCarry returns the carry in yards for a ball speed (mph) and vertical
// launch angle (degrees), rounded to whole yards. Negative angles count as 0.
func EstimateCarry(speed, vla float64) float64 {
	return units.Round(speed*(carryBase+(math.Max(0, vla)/carryAngleSpan)*carryAngleWeight), 0)
}
