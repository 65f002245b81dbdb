// Package clock provides an injectable time source so services that make
// time-based decisions (future-start validation, expiry sweeps) can be
// tested deterministically.
package clock

import "time"

// Clock is the current time source used by domain services.
type Clock interface {
	Now() time.Time
}

// System returns the wall clock.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Fixed is a Clock pinned to a settable instant, for tests.
type Fixed struct {
	Time time.Time
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time {
	return f.Time
}

// Advance moves the pinned instant forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.Time = f.Time.Add(d)
}
