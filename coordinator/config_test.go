package coordinator

import (
	"testing"
	"time"

	"github.com/virgil28labs/timesync/models"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.Defaults()

	want := Config{
		TickInterval:      time.Second,
		HeartbeatInterval: 2 * time.Second,
		StaleThreshold:    10 * time.Second,
		DriftInterval:     5 * time.Second,
		DriftThreshold:    100 * time.Millisecond,
		MaxSyncLatency:    50 * time.Millisecond,
	}
	if cfg != want {
		t.Fatalf("Defaults() = %+v, want %+v", cfg, want)
	}

	custom := Config{StaleThreshold: 30 * time.Second}
	custom.Defaults()
	if custom.StaleThreshold != 30*time.Second {
		t.Fatalf("Defaults() overwrote a set value: %v", custom.StaleThreshold)
	}
}

func TestStateAndRoleStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{StateUninitialized.String(), "UNINITIALIZED"},
		{StateSolo.String(), "SOLO"},
		{StateCoordinating.String(), "COORDINATING"},
		{StateDestroyed.String(), "DESTROYED"},
		{State(42).String(), "UNKNOWN"},
		{RoleLeader.String(), "LEADER"},
		{RoleFollower.String(), "FOLLOWER"},
		{RoleNone.String(), "NONE"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestObserversFanOut(t *testing.T) {
	first := &recordingObserver{}
	var second []models.EventKind
	obs := Observers{first, nil, ObserverFunc(func(ev models.SyncEvent) { second = append(second, ev.Kind) })}

	obs.Observe(models.SyncEvent{Kind: models.EventPeerJoined})

	if first.count(models.EventPeerJoined) != 1 || len(second) != 1 {
		t.Fatalf("event not fanned out to every observer")
	}
}
