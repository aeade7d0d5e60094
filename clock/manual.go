package clock

import (
	"sync"
	"time"
)

var _ Clock = (*Manual)(nil)

// Manual is a Clock that only moves when told to.
type Manual struct {
	mu   sync.Mutex
	wall time.Time
	mono time.Duration
}

// NewManual creates a Manual clock whose wall time starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{wall: start.Round(0)}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wall
}

func (m *Manual) Monotonic() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mono
}

// Advance moves both the wall and the monotonic clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wall = m.wall.Add(d)
	m.mono += d
}

// StepWall moves only the wall clock, as an external adjustment would.
func (m *Manual) StepWall(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wall = m.wall.Add(d)
}
