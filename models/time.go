package models

import "time"

// TimeUpdate is delivered to local subscribers on every tick, drift
// correction or accepted TIME_SYNC.
type TimeUpdate struct {
	CurrentTimeText string    `json:"currentTimeText"`
	CurrentDateText string    `json:"currentDateText"`
	Instant         time.Time `json:"instant"`
}

// DriftSample holds the elapsed wall and monotonic time over one detection
// cycle.
type DriftSample struct {
	WallClockDelta time.Duration
	MonotonicDelta time.Duration
}

// Drift returns |WallClockDelta - MonotonicDelta|.
func (s DriftSample) Drift() time.Duration {
	d := s.WallClockDelta - s.MonotonicDelta
	if d < 0 {
		return -d
	}
	return d
}
