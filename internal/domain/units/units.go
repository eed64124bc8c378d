// Package units holds the unit conversions and fixed-point rounding shared by
// the reference, enrichment and trajectory code.
package units

import (
	"math"
	"math/big"
	"strconv"
)

// Conversion factors.
const (
	MPHToMetersPerSecond = 0.44704
	MetersToYards        = 1.09361
	MetersToFeet         = 3.28084
	Gravity              = 9.81 // m/s²
)

// roundPrec holds x*10^places exactly for any float64 and practical places.
const roundPrec = 256

// Round rounds x to the given number of decimal places, half away from zero,
// deciding ties on the exact binary value of x. Round(1.005, 2) is 1 because
// 1.005 is stored as 1.00499999999999989...
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || places < 0 {
		return x
	}
	if x == 0 {
		return 0
	}
	scale := new(big.Float).SetPrec(roundPrec).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(places)), nil))
	v := new(big.Float).SetPrec(roundPrec).SetFloat64(x)
	v.Mul(v, scale)

	half := big.NewFloat(0.5)
	if v.Sign() < 0 {
		half.Neg(half)
	}
	v.Add(v, half)

	n, _ := v.Int(nil) // truncates toward zero
	if n.Sign() == 0 {
		return 0
	}
	out, err := strconv.ParseFloat(n.String()+"e-"+strconv.Itoa(places), 64)
	if err != nil {
		return x
	}
	return out
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
