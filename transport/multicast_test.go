package transport

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/virgil28labs/timesync/models"
)

func TestNewMulticastRejectsBadGroup(t *testing.T) {
	cases := []MulticastParams{
		{SelfID: "A", Group: "10.0.0.1", Port: 47474},
		{SelfID: "A", Group: "not-an-ip", Port: 47474},
		{SelfID: "A", Group: "239.255.77.77", Port: 0},
	}
	for _, p := range cases {
		if _, err := NewMulticast(p); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("NewMulticast(%+v) error = %v, want ErrUnavailable", p, err)
		}
	}
}

func TestMulticastPeersOnOneHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping multicast test in -short mode")
	}

	port := 40000 + os.Getpid()%20000
	open := func(id string) *Multicast {
		m, err := NewMulticast(MulticastParams{SelfID: id, Group: "239.255.77.78", Port: port})
		if err != nil {
			t.Skipf("multicast unavailable: %v", err)
		}
		t.Cleanup(func() { _ = m.Close() })
		return m
	}

	a := open("A")
	b := open("B")

	inA := make(chan models.SyncMessage, 8)
	inB := make(chan models.SyncMessage, 8)
	a.OnMessage(func(msg models.SyncMessage) { inA <- msg })
	b.OnMessage(func(msg models.SyncMessage) { inB <- msg })

	if err := a.Send(models.NewMessage(models.KindHeartbeat, "A", time.Now(), nil)); err != nil {
		t.Skipf("multicast send unavailable: %v", err)
	}

	select {
	case msg := <-inB:
		if msg.SenderID != "A" {
			t.Fatalf("unexpected sender %q", msg.SenderID)
		}
	case <-time.After(2 * time.Second):
		t.Skip("no multicast loopback delivery in this environment")
	}

	select {
	case msg := <-inA:
		t.Fatalf("sender received its own message %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSplitFrame(t *testing.T) {
	prefix := channelPrefix("timesync")

	tests := []struct {
		name   string
		frame  []byte
		want   string
		wantOK bool
	}{
		{name: "own channel", frame: append(channelPrefix("timesync"), `{"kind":"HEARTBEAT"}`...), want: `{"kind":"HEARTBEAT"}`, wantOK: true},
		{name: "other channel", frame: append(channelPrefix("other"), `{}`...), wantOK: false},
		{name: "channel sharing a prefix", frame: append(channelPrefix("timesync2"), `{}`...), wantOK: false},
		{name: "unframed payload", frame: []byte(`{"kind":"HEARTBEAT"}`), wantOK: false},
		{name: "empty", frame: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := splitFrame(prefix, tt.frame)
			if ok != tt.wantOK {
				t.Fatalf("splitFrame ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && string(got) != tt.want {
				t.Fatalf("splitFrame = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMulticastChannelsAreSeparate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping multicast test in -short mode")
	}

	port := 40000 + (os.Getpid()+1)%20000
	open := func(id, channel string) *Multicast {
		m, err := NewMulticast(MulticastParams{SelfID: id, Channel: channel, Group: "239.255.77.79", Port: port})
		if err != nil {
			t.Skipf("multicast unavailable: %v", err)
		}
		t.Cleanup(func() { _ = m.Close() })
		return m
	}

	a := open("A", "alpha")
	b := open("B", "alpha")
	c := open("C", "beta")

	inB := make(chan models.SyncMessage, 8)
	inC := make(chan models.SyncMessage, 8)
	b.OnMessage(func(msg models.SyncMessage) { inB <- msg })
	c.OnMessage(func(msg models.SyncMessage) { inC <- msg })

	if err := a.Send(models.NewMessage(models.KindHeartbeat, "A", time.Now(), nil)); err != nil {
		t.Skipf("multicast send unavailable: %v", err)
	}

	select {
	case <-inB:
	case <-time.After(2 * time.Second):
		t.Skip("no multicast loopback delivery in this environment")
	}

	select {
	case msg := <-inC:
		t.Fatalf("peer on another channel received %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}
