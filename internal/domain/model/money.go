package model

import "math"

// All monetary amounts in the system are int64 minor units (kopecks for RUB)
// to avoid float accumulation errors. Percentages stay float64 and every
// percentage application goes through RoundHalfUp.

// RoundHalfUp rounds to the nearest integer with ties going away from zero.
func RoundHalfUp(x float64) int64 {
	if x >= 0 {
		return int64(math.Floor(x + 0.5))
	}
	return -int64(math.Floor(-x + 0.5))
}

// MinorUnits converts a major-unit amount (e.g. promo code face value) to
// minor units with half-up rounding.
func MinorUnits(major float64) int64 {
	return RoundHalfUp(major * 100)
}
