package transport

import (
	"sort"
	"sync"

	"github.com/virgil28labs/timesync/models"
)

var _ Transport = (*MemoryTransport)(nil)

// Hub connects in-process peers. Every message is encoded with the hub's
// codec and decoded by each recipient, so payloads look exactly as they
// would after crossing a real wire.
type Hub struct {
	codec  Codec
	logger Logger

	mu      sync.RWMutex
	members map[string]*MemoryTransport
	muted   map[string]bool
}

// NewHub creates an empty hub using the JSON codec.
func NewHub() *Hub {
	return NewHubWithCodec(JSONCodec{}, nil)
}

// NewHubWithCodec creates an empty hub using codec.
func NewHubWithCodec(codec Codec, log Logger) *Hub {
	return &Hub{
		codec:   codec,
		logger:  orNop(log),
		members: make(map[string]*MemoryTransport),
		muted:   make(map[string]bool),
	}
}

// Join attaches a new peer to the hub. Joining twice with the same id
// replaces the earlier member.
func (h *Hub) Join(id string) *MemoryTransport {
	t := &MemoryTransport{hub: h, id: id}
	h.mu.Lock()
	h.members[id] = t
	h.mu.Unlock()
	return t
}

// SetMuted drops every message sent by id while muted, simulating a peer
// that went silent without leaving.
func (h *Hub) SetMuted(id string, muted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.muted[id] = muted
}

// Members returns the ids of attached peers, sorted.
func (h *Hub) Members() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.members))
	for id := range h.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) leave(t *MemoryTransport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.members[t.id] == t {
		delete(h.members, t.id)
	}
}

func (h *Hub) broadcast(from string, data []byte) {
	h.mu.RLock()
	if h.muted[from] {
		h.mu.RUnlock()
		return
	}
	targets := make([]*MemoryTransport, 0, len(h.members))
	for id, m := range h.members {
		if id != from {
			targets = append(targets, m)
		}
	}
	h.mu.RUnlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })
	for _, m := range targets {
		m.receive(data)
	}
}

// MemoryTransport is one peer's attachment to a Hub. Delivery is
// synchronous: Send returns after every other member's handler ran.
type MemoryTransport struct {
	hub *Hub
	id  string

	mu      sync.RWMutex
	handler Handler
	closed  bool
}

func (t *MemoryTransport) Send(msg models.SyncMessage) error {
	data, err := t.hub.codec.Marshal(msg)
	if err != nil {
		return err
	}
	return t.SendRaw(data)
}

// SendRaw broadcasts an already encoded frame.
func (t *MemoryTransport) SendRaw(data []byte) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	t.hub.broadcast(t.id, data)
	return nil
}

func (t *MemoryTransport) OnMessage(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.handler = nil
	t.mu.Unlock()

	t.hub.leave(t)
	return nil
}

func (t *MemoryTransport) receive(data []byte) {
	t.mu.RLock()
	h := t.handler
	closed := t.closed
	t.mu.RUnlock()
	if closed || h == nil {
		return
	}

	msg, err := decode(t.hub.codec, data)
	if err != nil {
		t.hub.logger.DebugW("dropping malformed message", "peer", t.id, "error", err)
		return
	}
	if msg.SenderID == t.id {
		return
	}
	h(msg)
}
