package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type relayConn struct {
	conn    *websocket.Conn
	peer    string
	writeMu sync.Mutex
}

func (c *relayConn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Relay is an http.Handler that forwards every frame received from one
// WebSocket peer to all other peers on the same channel. Frames are not
// inspected.
type Relay struct {
	upgrader websocket.Upgrader
	logger   Logger

	mu       sync.Mutex
	channels map[string]map[*relayConn]struct{}
	closed   bool
}

// RelayParams holds configuration for creating a Relay.
type RelayParams struct {
	// AllowedOrigins lists origins permitted to connect. When empty only
	// same-origin and non-browser clients are accepted.
	AllowedOrigins []string
	Logger         Logger
}

func NewRelay(p RelayParams) *Relay {
	r := &Relay{
		logger:   orNop(p.Logger),
		channels: make(map[string]map[*relayConn]struct{}),
	}
	if len(p.AllowedOrigins) > 0 {
		allowed := make(map[string]struct{}, len(p.AllowedOrigins))
		for _, o := range p.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.upgrader.CheckOrigin = func(req *http.Request) bool {
			origin := req.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
	return r
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	channel := req.URL.Query().Get("channel")
	if channel == "" {
		channel = DefaultChannel
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.DebugW("relay upgrade failed", "error", err)
		return
	}

	rc := &relayConn{conn: conn, peer: req.URL.Query().Get("peer")}
	if !r.add(channel, rc) {
		_ = conn.Close()
		return
	}
	defer func() {
		r.remove(channel, rc)
		_ = conn.Close()
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		r.broadcast(channel, rc, mt, data)
	}
}

// Peers returns the number of connections on channel.
func (r *Relay) Peers(channel string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels[channel])
}

// Close disconnects every peer and rejects new ones.
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	var conns []*relayConn
	for _, set := range r.channels {
		for c := range set {
			conns = append(conns, c)
		}
	}
	r.channels = make(map[string]map[*relayConn]struct{})
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.conn.Close()
	}
}

func (r *Relay) add(channel string, c *relayConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	set, ok := r.channels[channel]
	if !ok {
		set = make(map[*relayConn]struct{})
		r.channels[channel] = set
	}
	set[c] = struct{}{}
	return true
}

func (r *Relay) remove(channel string, c *relayConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.channels[channel]
	delete(set, c)
	if len(set) == 0 {
		delete(r.channels, channel)
	}
}

func (r *Relay) broadcast(channel string, from *relayConn, mt int, data []byte) {
	r.mu.Lock()
	targets := make([]*relayConn, 0, len(r.channels[channel]))
	for c := range r.channels[channel] {
		if c != from {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	for _, c := range targets {
		if err := c.write(mt, data); err != nil {
			r.logger.DebugW("relay write failed", "peer", c.peer, "error", err)
			_ = c.conn.Close()
		}
	}
}
