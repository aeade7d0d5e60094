package coordinator

import (
	"time"

	"github.com/virgil28labs/timesync/drift"
	"github.com/virgil28labs/timesync/heartbeat"
)

// Config holds the coordination timings. Every value is a tunable default.
type Config struct {
	TickInterval      time.Duration `yaml:"tick_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StaleThreshold    time.Duration `yaml:"stale_threshold"`
	DriftInterval     time.Duration `yaml:"drift_interval"`
	DriftThreshold    time.Duration `yaml:"drift_threshold"`
	MaxSyncLatency    time.Duration `yaml:"max_sync_latency"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = heartbeat.DefaultInterval
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = heartbeat.DefaultStaleThreshold
	}
	if c.DriftInterval <= 0 {
		c.DriftInterval = drift.DefaultInterval
	}
	if c.DriftThreshold <= 0 {
		c.DriftThreshold = drift.DefaultThreshold
	}
	if c.MaxSyncLatency <= 0 {
		c.MaxSyncLatency = 50 * time.Millisecond
	}
}
