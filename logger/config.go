package logger

// Config holds logger configuration. Development selects zap's console
// encoder, which reads better than JSON when peers run in a terminal.
type Config struct {
	Level       string   `yaml:"level"`
	OutputPaths []string `yaml:"output_paths"`
	Development bool     `yaml:"development"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if len(c.OutputPaths) == 0 {
		c.OutputPaths = []string{"stdout"}
	}
}
