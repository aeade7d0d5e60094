package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/virgil28labs/timesync/models"
)

var _ Transport = (*WebSocket)(nil)

const writeWait = 5 * time.Second

func frameType(c Codec) int {
	if c.Name() == CodecMsgpack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// WebSocket is a peer connected to a Relay. The relay forwards every frame to
// the other peers on the same channel.
type WebSocket struct {
	selfID string
	codec  Codec
	logger Logger
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu      sync.RWMutex
	handler Handler

	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// WebSocketParams holds configuration for connecting to a relay.
type WebSocketParams struct {
	SelfID      string
	URL         string
	Channel     string
	Codec       Codec
	DialTimeout time.Duration
	Logger      Logger
}

// DialWebSocket connects to the relay at p.URL. Any failure wraps
// ErrUnavailable.
func DialWebSocket(ctx context.Context, p WebSocketParams) (*WebSocket, error) {
	if p.URL == "" {
		return nil, fmt.Errorf("%w: relay url is required", ErrUnavailable)
	}
	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: relay url: %v", ErrUnavailable, err)
	}
	channel := p.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	q := u.Query()
	q.Set("channel", channel)
	q.Set("peer", p.SelfID)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: p.DialTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial relay: %v", ErrUnavailable, err)
	}

	codec := p.Codec
	if codec == nil {
		codec = JSONCodec{}
	}

	ws := &WebSocket{
		selfID:  p.SelfID,
		codec:   codec,
		logger:  orNop(p.Logger),
		conn:    conn,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go ws.readLoop()
	return ws, nil
}

func (w *WebSocket) Send(msg models.SyncMessage) error {
	select {
	case <-w.closing:
		return ErrClosed
	default:
	}

	data, err := w.codec.Marshal(msg)
	if err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(frameType(w.codec), data)
}

func (w *WebSocket) OnMessage(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = h
}

func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closing)
		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		w.writeMu.Unlock()
		err = w.conn.Close()
		<-w.done
	})
	return err
}

// TODO: reconnect with backoff; today a dropped relay connection leaves the
// peer silent until it is restarted.
func (w *WebSocket) readLoop() {
	defer close(w.done)

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.closing:
			default:
				w.logger.WarnW("relay connection lost", "error", err)
			}
			return
		}

		msg, err := decode(w.codec, data)
		if err != nil {
			w.logger.DebugW("dropping malformed message", "error", err)
			continue
		}
		if msg.SenderID == w.selfID {
			continue
		}

		w.mu.RLock()
		h := w.handler
		w.mu.RUnlock()
		if h != nil {
			h(msg)
		}
	}
}
