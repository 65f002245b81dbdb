package domain

import "time"

// Overlaps tests two half-open intervals [s1,e1) and [s2,e2) for overlap.
// Adjacent intervals (e1 == s2) do not conflict.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}
