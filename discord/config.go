package discord

const defaultQueueSize = 32

// Config holds Discord-specific configuration.
type Config struct {
	Token        string `yaml:"token"`
	AlertChannel string `yaml:"alert_channel"`
	QueueSize    int    `yaml:"queue_size"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
}

// Enabled reports whether alerts can be posted.
func (c Config) Enabled() bool {
	return c.Token != "" && c.AlertChannel != ""
}
