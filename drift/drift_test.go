package drift

import (
	"testing"
	"time"

	"github.com/virgil28labs/timesync/clock"
)

var t0 = time.Date(2026, 2, 4, 12, 0, 0, 0, time.UTC)

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		step      func(m *clock.Manual)
		wantDrift time.Duration
		wantHit   bool
	}{
		{
			name:      "both clocks advance together",
			step:      func(m *clock.Manual) { m.Advance(5 * time.Second) },
			wantDrift: 0,
		},
		{
			name: "wall stepped forward past threshold",
			step: func(m *clock.Manual) {
				m.Advance(5 * time.Second)
				m.StepWall(200 * time.Millisecond)
			},
			wantDrift: 200 * time.Millisecond,
			wantHit:   true,
		},
		{
			name: "wall stepped backward past threshold",
			step: func(m *clock.Manual) {
				m.Advance(5 * time.Second)
				m.StepWall(-300 * time.Millisecond)
			},
			wantDrift: 300 * time.Millisecond,
			wantHit:   true,
		},
		{
			name:      "exactly at threshold is not drift",
			step:      func(m *clock.Manual) { m.StepWall(100 * time.Millisecond) },
			wantDrift: 100 * time.Millisecond,
		},
		{
			name:      "small step below threshold",
			step:      func(m *clock.Manual) { m.StepWall(40 * time.Millisecond) },
			wantDrift: 40 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := clock.NewManual(t0)
			d := New(m, 0)
			tt.step(m)

			_, drift, hit := d.Check()
			if drift != tt.wantDrift || hit != tt.wantHit {
				t.Fatalf("Check() = %v, %v; want %v, %v", drift, hit, tt.wantDrift, tt.wantHit)
			}
		})
	}
}

func TestSingleStepTriggersOnce(t *testing.T) {
	m := clock.NewManual(t0)
	d := New(m, 100*time.Millisecond)

	m.Advance(5 * time.Second)
	m.StepWall(200 * time.Millisecond)

	hits := 0
	for i := 0; i < 5; i++ {
		if _, _, hit := d.Check(); hit {
			hits++
		}
		m.Advance(5 * time.Second)
	}
	if hits != 1 {
		t.Fatalf("expected exactly one detection, got %d", hits)
	}
}

func TestResetReanchors(t *testing.T) {
	m := clock.NewManual(t0)
	d := New(m, 0)

	m.StepWall(time.Second)
	d.Reset()

	if _, _, hit := d.Check(); hit {
		t.Fatalf("expected no drift after reset")
	}
}

func TestSampleDeltas(t *testing.T) {
	m := clock.NewManual(t0)
	d := New(m, 0)
	m.Advance(5 * time.Second)
	m.StepWall(250 * time.Millisecond)

	sample, _, _ := d.Check()
	if sample.WallClockDelta != 5250*time.Millisecond || sample.MonotonicDelta != 5*time.Second {
		t.Fatalf("unexpected sample %+v", sample)
	}
}
