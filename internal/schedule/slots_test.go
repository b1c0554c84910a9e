package schedule

import (
	"reflect"
	"testing"
)

func TestHasConflict(t *testing.T) {
	existing := []Interval{{Start: 600, End: 660}}

	cases := []struct {
		name     string
		start    int
		duration int
		want     bool
	}{
		{"identical interval", 600, 60, true},
		{"starts where booking ends", 660, 60, false},
		{"ends where booking starts", 540, 60, false},
		{"overlaps tail", 630, 60, true},
		{"contained", 610, 30, true},
		{"surrounds", 540, 180, true},
		{"well clear", 720, 60, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasConflict(tc.start, tc.duration, existing); got != tc.want {
				t.Fatalf("HasConflict(%d, %d) = %v, want %v", tc.start, tc.duration, got, tc.want)
			}
		})
	}
}

func TestHasConflict_NoBookings(t *testing.T) {
	if HasConflict(600, 60, nil) {
		t.Fatal("empty schedule should never conflict")
	}
}

func TestFindFreeSlots_Grid(t *testing.T) {
	// Open 10:00-14:00, one booking 11:00-12:00, hour grid, hour duration.
	existing := []Interval{{Start: 660, End: 720}}
	got := FindFreeSlots(existing, 600, 840, 60, 60, SearchModeGrid)
	want := []int{600, 720, 780}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("free slots: %v, want %v", got, want)
	}
}

func TestFindFreeSlots_GridMissesOffGridGap(t *testing.T) {
	// Booking 10:30-11:30 blocks both the 10:00 and 11:00 grid slots even
	// though 11:30-12:30 is physically free.
	existing := []Interval{{Start: 630, End: 690}}
	got := FindFreeSlots(existing, 600, 750, 60, 60, SearchModeGrid)
	if len(got) != 0 {
		t.Fatalf("grid search should find nothing, got %v", got)
	}
}

func TestFindFreeSlots_GapFillProbesBookingEnds(t *testing.T) {
	existing := []Interval{{Start: 630, End: 690}}
	got := FindFreeSlots(existing, 600, 750, 60, 60, SearchModeGapFill)
	want := []int{690}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("free slots: %v, want %v", got, want)
	}
}

func TestFindFreeSlots_GapFillKeepsGridSlots(t *testing.T) {
	existing := []Interval{{Start: 630, End: 690}}
	got := FindFreeSlots(existing, 600, 840, 60, 60, SearchModeGapFill)
	want := []int{690, 720, 780}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("free slots: %v, want %v", got, want)
	}
}

func TestFindFreeSlots_FullyBooked(t *testing.T) {
	existing := []Interval{{Start: 600, End: 840}}
	if got := FindFreeSlots(existing, 600, 840, 30, 60, SearchModeGrid); len(got) != 0 {
		t.Fatalf("expected no free slots, got %v", got)
	}
}

func TestFindFreeSlots_DurationLongerThanDay(t *testing.T) {
	if got := FindFreeSlots(nil, 600, 660, 30, 120, SearchModeGrid); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
