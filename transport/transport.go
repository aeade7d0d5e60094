package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/virgil28labs/timesync/models"
)

// DefaultChannel is the channel shared by all peers of one application
// instance.
const DefaultChannel = "timesync"

var (
	// ErrUnavailable signals that a transport could not be constructed. The
	// caller is expected to fall back to running alone.
	ErrUnavailable = errors.New("transport unavailable")

	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("transport closed")
)

// Handler receives inbound messages from other peers.
type Handler func(models.SyncMessage)

// Transport broadcasts messages to every other peer on a channel. Delivery
// is best effort: messages may be lost, duplicated or reordered. A peer
// never receives its own messages.
type Transport interface {
	Send(msg models.SyncMessage) error
	OnMessage(h Handler)
	Close() error
}

// Logger is the subset of logger.Logger used by transports.
type Logger interface {
	DebugW(msg string, keysAndValues ...any)
	WarnW(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) DebugW(string, ...any) {}
func (nopLogger) WarnW(string, ...any)  {}

func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

const (
	KindNone      = "none"
	KindMulticast = "multicast"
	KindWebSocket = "websocket"
)

// Config selects and configures the transport.
type Config struct {
	Kind           string        `yaml:"kind"`
	Channel        string        `yaml:"channel"`
	Codec          string        `yaml:"codec"`
	MulticastGroup string        `yaml:"multicast_group"`
	MulticastPort  int           `yaml:"multicast_port"`
	Interface      string        `yaml:"interface"`
	RelayURL       string        `yaml:"relay_url"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.Kind == "" {
		c.Kind = KindMulticast
	}
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	if c.Codec == "" {
		c.Codec = CodecJSON
	}
	if c.MulticastGroup == "" {
		c.MulticastGroup = "239.255.77.77"
	}
	if c.MulticastPort == 0 {
		c.MulticastPort = 47474
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
}

// Open builds the transport selected by cfg. Any failure wraps
// ErrUnavailable.
func Open(ctx context.Context, cfg Config, selfID string, log Logger) (Transport, error) {
	cfg.Defaults()

	codec, err := CodecByName(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch cfg.Kind {
	case KindNone:
		return nil, fmt.Errorf("%w: disabled by configuration", ErrUnavailable)
	case KindMulticast:
		m, err := NewMulticast(MulticastParams{
			SelfID:    selfID,
			Channel:   cfg.Channel,
			Group:     cfg.MulticastGroup,
			Port:      cfg.MulticastPort,
			Interface: cfg.Interface,
			Codec:     codec,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case KindWebSocket:
		ws, err := DialWebSocket(ctx, WebSocketParams{
			SelfID:      selfID,
			URL:         cfg.RelayURL,
			Channel:     cfg.Channel,
			Codec:       codec,
			DialTimeout: cfg.DialTimeout,
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		return ws, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrUnavailable, cfg.Kind)
	}
}
