// internal/schedule/slots.go
package schedule

import "sort"

// Interval is a half-open booking interval [Start, End) in minutes since
// midnight.
type Interval struct {
	Start int
	End   int
}

// SearchMode selects how FindFreeSlots enumerates candidate start times.
type SearchMode string

const (
	// SearchModeGrid probes only the fixed step grid between open and close.
	SearchModeGrid SearchMode = "grid"
	// SearchModeGapFill additionally probes the minute each existing booking
	// ends, surfacing off-grid slots the fixed grid would skip.
	SearchModeGapFill SearchMode = "gapfill"
)

// HasConflict reports whether a candidate interval of durationMinutes
// starting at startMinute overlaps any existing interval. Intervals are
// half-open, so a candidate that starts exactly where a booking ends (or
// ends exactly where one starts) does not conflict.
func HasConflict(startMinute, durationMinutes int, existing []Interval) bool {
	endMinute := startMinute + durationMinutes
	for _, iv := range existing {
		if startMinute < iv.End && endMinute > iv.Start {
			return true
		}
	}
	return false
}

// FindFreeSlots returns the start minutes at which a booking of
// durationMinutes fits between openMinute and closeMinute without touching
// any existing interval. Candidates come from the fixed stepMinutes grid;
// with SearchModeGapFill the end of each existing interval is probed as
// well. Results are sorted ascending and an empty result is a normal
// outcome, not an error.
func FindFreeSlots(existing []Interval, openMinute, closeMinute, stepMinutes, durationMinutes int, mode SearchMode) []int {
	if stepMinutes <= 0 || durationMinutes <= 0 || closeMinute-durationMinutes < openMinute {
		return nil
	}

	candidates := make(map[int]struct{})
	for start := openMinute; start <= closeMinute-durationMinutes; start += stepMinutes {
		candidates[start] = struct{}{}
	}
	if mode == SearchModeGapFill {
		for _, iv := range existing {
			if iv.End >= openMinute && iv.End <= closeMinute-durationMinutes {
				candidates[iv.End] = struct{}{}
			}
		}
	}

	var free []int
	for start := range candidates {
		if !HasConflict(start, durationMinutes, existing) {
			free = append(free, start)
		}
	}
	sort.Ints(free)
	return free
}
