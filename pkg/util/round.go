package util

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v to places decimals, half away from zero.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(Finite(v)).Round(places).Float64()
	return f
}

// Finite maps NaN and infinities to 0.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// NonNegative coerces an upstream number to a finite value >= 0.
func NonNegative(v float64) float64 {
	v = Finite(v)
	if v < 0 {
		return 0
	}
	return v
}

// Ratio returns num/den*100 rounded to one decimal, or 0 when den is not positive.
func Ratio(num, den float64) float64 {
	if den <= 0 || Finite(den) == 0 {
		return 0
	}
	return Round(num/den*100, 1)
}
