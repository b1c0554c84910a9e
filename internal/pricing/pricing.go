// internal/pricing/pricing.go
package pricing

import "math"

// RoundingUnit is the currency step each rate segment is rounded up to.
const RoundingUnit = 100

// Compute returns the total price for a booking that starts at startMinute
// (minutes since midnight) and runs for durationMinutes on a field charging
// preRate per hour before cutoffMinute and postRate per hour after it.
//
// The interval is split at the cutoff into a pre segment and a post segment,
// either of which may be empty. Each segment is priced independently and
// rounded up to the next multiple of RoundingUnit before the two are summed.
// A booking that straddles the cutoff can therefore cost more than either
// segment booked alone would; that is the published rate card behavior.
func Compute(preRate, postRate int64, cutoffMinute, startMinute, durationMinutes int) int64 {
	endMinute := startMinute + durationMinutes

	preMinutes := minInt(endMinute, cutoffMinute) - startMinute
	if preMinutes < 0 {
		preMinutes = 0
	}
	postMinutes := endMinute - maxInt(startMinute, cutoffMinute)
	if postMinutes < 0 {
		postMinutes = 0
	}

	// Multiply before dividing so whole-hour segments stay exact in float64.
	prePrice := roundUpToUnit(float64(preMinutes) * float64(preRate) / 60)
	postPrice := roundUpToUnit(float64(postMinutes) * float64(postRate) / 60)

	return int64(math.Round(prePrice + postPrice))
}

// roundUpToUnit rounds amount up to the next multiple of RoundingUnit unless
// it already sits exactly on one.
func roundUpToUnit(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	units := math.Ceil(amount / RoundingUnit)
	return units * RoundingUnit
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
