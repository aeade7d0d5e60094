package transport

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/libp2p/go-reuseport"
	"golang.org/x/net/ipv4"

	"github.com/virgil28labs/timesync/models"
)

var _ Transport = (*Multicast)(nil)

const maxDatagramSize = 64 * 1024

// Multicast broadcasts messages to an IPv4 multicast group. The socket is
// opened with SO_REUSEPORT so any number of peers on one host can listen on
// the same group port. Each datagram starts with the channel name and a zero
// byte; frames for other channels are dropped.
type Multicast struct {
	selfID string
	prefix []byte
	codec  Codec
	logger Logger
	group  *net.UDPAddr
	ifi    *net.Interface
	conn   net.PacketConn
	pc     *ipv4.PacketConn

	mu      sync.RWMutex
	handler Handler

	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// MulticastParams holds configuration for creating a Multicast transport.
type MulticastParams struct {
	SelfID    string
	Channel   string
	Group     string
	Port      int
	Interface string
	Codec     Codec
	Logger    Logger
}

// NewMulticast joins the group and starts reading. Any failure wraps
// ErrUnavailable.
func NewMulticast(p MulticastParams) (*Multicast, error) {
	ip := net.ParseIP(p.Group).To4()
	if ip == nil || !ip.IsMulticast() {
		return nil, fmt.Errorf("%w: invalid multicast group %q", ErrUnavailable, p.Group)
	}
	if p.Port <= 0 || p.Port > 65535 {
		return nil, fmt.Errorf("%w: invalid multicast port %d", ErrUnavailable, p.Port)
	}

	var ifi *net.Interface
	if p.Interface != "" {
		var err error
		ifi, err = net.InterfaceByName(p.Interface)
		if err != nil {
			return nil, fmt.Errorf("%w: interface %s: %v", ErrUnavailable, p.Interface, err)
		}
	}

	conn, err := reuseport.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", p.Port))
	if err != nil {
		return nil, fmt.Errorf("%w: listen: %v", ErrUnavailable, err)
	}

	pc := ipv4.NewPacketConn(conn)
	group := &net.UDPAddr{IP: ip, Port: p.Port}
	if err := pc.JoinGroup(ifi, &net.UDPAddr{IP: ip}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: join group %s: %v", ErrUnavailable, ip, err)
	}
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: multicast interface: %v", ErrUnavailable, err)
		}
	}
	// Peers on the same host must hear each other.
	if err := pc.SetMulticastLoopback(true); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: multicast loopback: %v", ErrUnavailable, err)
	}
	if err := pc.SetMulticastTTL(1); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: multicast ttl: %v", ErrUnavailable, err)
	}

	codec := p.Codec
	if codec == nil {
		codec = JSONCodec{}
	}

	channel := p.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	m := &Multicast{
		selfID:  p.SelfID,
		prefix:  channelPrefix(channel),
		codec:   codec,
		logger:  orNop(p.Logger),
		group:   group,
		ifi:     ifi,
		conn:    conn,
		pc:      pc,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go m.readLoop()
	return m, nil
}

// Addr returns the group address messages are sent to.
func (m *Multicast) Addr() net.Addr { return m.group }

func (m *Multicast) Send(msg models.SyncMessage) error {
	select {
	case <-m.closing:
		return ErrClosed
	default:
	}

	data, err := m.codec.Marshal(msg)
	if err != nil {
		return err
	}
	frame := make([]byte, 0, len(m.prefix)+len(data))
	frame = append(append(frame, m.prefix...), data...)
	if len(frame) > maxDatagramSize {
		return fmt.Errorf("message of %d bytes exceeds datagram size", len(frame))
	}
	_, err = m.pc.WriteTo(frame, nil, m.group)
	return err
}

func (m *Multicast) OnMessage(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *Multicast) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.closing)
		_ = m.pc.LeaveGroup(m.ifi, &net.UDPAddr{IP: m.group.IP})
		err = m.conn.Close()
		<-m.done
	})
	return err
}

func (m *Multicast) readLoop() {
	defer close(m.done)

	buf := make([]byte, maxDatagramSize)
	for {
		n, _, src, err := m.pc.ReadFrom(buf)
		if err != nil {
			select {
			case <-m.closing:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			m.logger.WarnW("multicast read failed", "error", err)
			continue
		}

		data, ok := splitFrame(m.prefix, buf[:n])
		if !ok {
			m.logger.DebugW("dropping frame for another channel", "from", src)
			continue
		}
		msg, err := decode(m.codec, data)
		if err != nil {
			m.logger.DebugW("dropping malformed message", "from", src, "error", err)
			continue
		}
		if msg.SenderID == m.selfID {
			continue
		}

		m.mu.RLock()
		h := m.handler
		m.mu.RUnlock()
		if h != nil {
			h(msg)
		}
	}
}

func channelPrefix(channel string) []byte {
	return append([]byte(channel), 0)
}

// splitFrame returns the payload of frame when it belongs to the channel
// whose prefix is given.
func splitFrame(prefix, frame []byte) ([]byte, bool) {
	if !bytes.HasPrefix(frame, prefix) {
		return nil, false
	}
	return frame[len(prefix):], true
}
