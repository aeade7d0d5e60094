package config

import (
	"os"
	"strings"

	"github.com/virgil28labs/timesync/clock"
	"github.com/virgil28labs/timesync/coordinator"
	"github.com/virgil28labs/timesync/discord"
	"github.com/virgil28labs/timesync/httpapi"
	"github.com/virgil28labs/timesync/logger"
	"github.com/virgil28labs/timesync/store"
	"github.com/virgil28labs/timesync/transport"
	"go.uber.org/config"
)

const (
	envPeerID       = "TIMESYNC_PEER_ID"
	envDiscordToken = "DISCORD_TOKEN"
)

// PeerConfig identifies this process among its peers.
type PeerConfig struct {
	// ID overrides the random id generated at startup. Ids are compared
	// lexicographically; the smallest live id leads.
	ID string `yaml:"id"`
}

// AppConfig holds all application configuration.
type AppConfig struct {
	Logger      logger.Config      `yaml:"logger"`
	Peer        PeerConfig         `yaml:"peer"`
	Coordinator coordinator.Config `yaml:"coordinator"`
	Transport   transport.Config   `yaml:"transport"`
	Clock       clock.Config       `yaml:"clock"`
	Store       store.Config       `yaml:"store"`
	HTTP        httpapi.Config     `yaml:"http"`
	Discord     discord.Config     `yaml:"discord"`
}

// Load reads configuration from the specified YAML files.
// Files are merged in order, with later files overriding earlier ones.
// Missing files are silently ignored.
func Load(files ...string) (*AppConfig, error) {
	opts := make([]config.YAMLOption, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			opts = append(opts, config.File(f))
		}
	}

	if len(opts) == 0 {
		return nil, os.ErrNotExist
	}

	provider, err := config.NewYAML(opts...)
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration with sensible defaults. When none of
// the files exist the defaults alone are used, so a peer can start without
// any configuration.
func LoadWithDefaults(files ...string) (*AppConfig, error) {
	cfg, err := Load(files...)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &AppConfig{}
	}

	cfg.ApplyEnv()
	cfg.Defaults()
	return cfg, nil
}

// ApplyEnv overrides secrets and the peer id from the environment.
func (c *AppConfig) ApplyEnv() {
	if id := strings.TrimSpace(os.Getenv(envPeerID)); id != "" {
		c.Peer.ID = id
	}
	if token := strings.TrimSpace(os.Getenv(envDiscordToken)); token != "" {
		c.Discord.Token = token
	}
}

// Defaults fills every unset value.
func (c *AppConfig) Defaults() {
	c.Logger.Defaults()
	c.Coordinator.Defaults()
	c.Transport.Defaults()
	c.Clock.Defaults()
	c.Store.Defaults()
	c.HTTP.Defaults()
	c.Discord.Defaults()
}
