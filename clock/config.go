package clock

import "time"

const (
	SourceSystem = "system"
	SourceNTP    = "ntp"
)

// Config selects the wall-clock source and how times are rendered.
type Config struct {
	Source       string        `yaml:"source"`
	NTPServer    string        `yaml:"ntp_server"`
	SyncInterval time.Duration `yaml:"sync_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	Location     string        `yaml:"location"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.Source == "" {
		c.Source = SourceSystem
	}
	if c.NTPServer == "" {
		c.NTPServer = defaultServer
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = defaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Location == "" {
		c.Location = "Local"
	}
}
