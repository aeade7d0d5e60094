// Package drift compares elapsed wall-clock time against elapsed monotonic
// time to notice when the system clock was stepped.
package drift

import (
	"time"

	"github.com/virgil28labs/timesync/clock"
	"github.com/virgil28labs/timesync/models"
)

const (
	DefaultInterval  = 5 * time.Second
	DefaultThreshold = 100 * time.Millisecond
)

// Detector keeps the reference points between checks. Not safe for
// concurrent use.
type Detector struct {
	clock     clock.Clock
	threshold time.Duration

	lastWall time.Time
	lastMono time.Duration
}

// New anchors a detector at the clock's current readings.
func New(c clock.Clock, threshold time.Duration) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	d := &Detector{clock: c, threshold: threshold}
	d.Reset()
	return d
}

// Reset re-anchors both reference points at the current readings.
func (d *Detector) Reset() {
	d.lastWall = d.clock.Now()
	d.lastMono = d.clock.Monotonic()
}

func (d *Detector) Threshold() time.Duration { return d.threshold }

// Check samples both clocks, moves the reference points forward and reports
// whether the divergence since the previous check exceeds the threshold.
func (d *Detector) Check() (models.DriftSample, time.Duration, bool) {
	wall := d.clock.Now()
	mono := d.clock.Monotonic()

	sample := models.DriftSample{
		WallClockDelta: wall.Sub(d.lastWall),
		MonotonicDelta: mono - d.lastMono,
	}
	d.lastWall = wall
	d.lastMono = mono

	drift := sample.Drift()
	return sample, drift, drift > d.threshold
}
