package domain

import (
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

	cases := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"partial overlap", at(14), at(16), at(15), at(17), true},
		{"contained", at(14), at(18), at(15), at(16), true},
		{"identical", at(14), at(16), at(14), at(16), true},
		{"adjacent after", at(14), at(16), at(16), at(17), false},
		{"adjacent before", at(14), at(16), at(13), at(14), false},
		{"disjoint", at(9), at(10), at(14), at(16), false},
	}

	for _, tc := range cases {
		if got := Overlaps(tc.s1, tc.e1, tc.s2, tc.e2); got != tc.want {
			t.Errorf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
		// Overlap is symmetric.
		if got := Overlaps(tc.s2, tc.e2, tc.s1, tc.e1); got != tc.want {
			t.Errorf("%s (swapped): Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}
}
