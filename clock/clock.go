package clock

import "time"

// Clock provides wall-clock time and a monotonic reference. Implementations
// may correct for system clock drift (e.g. via NTP).
//
// Now must not carry a monotonic reading, so that subtracting two wall times
// reflects external adjustments. Monotonic is elapsed time since the clock
// was created and is unaffected by them.
type Clock interface {
	Now() time.Time
	Monotonic() time.Duration
}

// System returns a Clock backed by time.Now().
func System() Clock { return systemClock{base: time.Now()} }

type systemClock struct {
	base time.Time
}

func (systemClock) Now() time.Time { return time.Now().Round(0) }

func (c systemClock) Monotonic() time.Duration { return time.Since(c.base) }
