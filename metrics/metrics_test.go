package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/virgil28labs/timesync/models"
)

// value gathers reg and returns the value of the named counter or gauge,
// optionally filtered by its kind label.
func value(t *testing.T, reg *prometheus.Registry, name, kind string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if kind != "" {
				match := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "kind" && lp.GetValue() == kind {
						match = true
					}
				}
				if !match {
					continue
				}
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
		}
	}
	return 0
}

func TestCollectorObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	events := []models.SyncEvent{
		{Kind: models.EventLeaderChanged, IsLeader: true, Peers: 2},
		{Kind: models.EventPeerJoined, IsLeader: true, Peers: 3},
		{Kind: models.EventMessageSent, IsLeader: true, Peers: 3, MessageKind: models.KindHeartbeat},
		{Kind: models.EventMessageSent, IsLeader: true, Peers: 3, MessageKind: models.KindHeartbeat},
		{Kind: models.EventMessageSent, IsLeader: true, Peers: 3, MessageKind: models.KindTimeSync},
		{Kind: models.EventMessageRecv, IsLeader: true, Peers: 3, MessageKind: models.KindElection},
		{Kind: models.EventSendFailed, IsLeader: true, Peers: 3},
		{Kind: models.EventDriftCorrected, IsLeader: true, Peers: 3, Drift: 250 * time.Millisecond},
		{Kind: models.EventPeerLost, IsLeader: false, Peers: 2},
		{Kind: models.EventSyncApplied, Peers: 2, Latency: 3 * time.Millisecond},
		{Kind: models.EventSyncRejected, Peers: 2},
	}
	for _, ev := range events {
		c.Observe(ev)
	}

	tests := []struct {
		name string
		kind string
		want float64
	}{
		{name: IsLeaderN, want: 0},
		{name: PeersN, want: 2},
		{name: LeaderChangesN, want: 1},
		{name: PeersJoinedN, want: 1},
		{name: PeersLostN, want: 1},
		{name: MessagesSentN, kind: "HEARTBEAT", want: 2},
		{name: MessagesSentN, kind: "TIME_SYNC", want: 1},
		{name: MessagesReceivedN, kind: "ELECTION", want: 1},
		{name: SendFailuresN, want: 1},
		{name: DriftCorrectionsN, want: 1},
		{name: LastDriftN, want: 0.25},
		{name: SyncLatencySecondsN, want: 1},
		{name: SyncRejectedN, want: 1},
	}
	for _, tt := range tests {
		if got := value(t, reg, tt.name, tt.kind); got != tt.want {
			t.Errorf("%s{kind=%q} = %v, want %v", tt.name, tt.kind, got, tt.want)
		}
	}
}

func TestCollectorDeliver(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	at := time.Date(2026, 2, 4, 20, 5, 9, 0, time.UTC)
	c.Deliver(models.TimeUpdate{Instant: at})
	c.Deliver(models.TimeUpdate{Instant: at.Add(time.Second)})

	if got := value(t, reg, UpdatesDeliveredN, ""); got != 2 {
		t.Errorf("%s = %v, want 2", UpdatesDeliveredN, got)
	}
	if got, want := value(t, reg, LastUpdateSecondsN, ""), float64(at.Unix()+1); got != want {
		t.Errorf("%s = %v, want %v", LastUpdateSecondsN, got, want)
	}
}

func TestSyncLatencyRecordsMagnitude(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Observe(models.SyncEvent{Kind: models.EventSyncApplied, Latency: -3 * time.Millisecond})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != SyncLatencySecondsN {
			continue
		}
		h := mf.GetMetric()[0].GetHistogram()
		if h.GetSampleCount() != 1 || h.GetSampleSum() <= 0 {
			t.Fatalf("histogram count=%d sum=%v, want one positive sample", h.GetSampleCount(), h.GetSampleSum())
		}
		return
	}
	t.Fatalf("%s not gathered", SyncLatencySecondsN)
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	New(reg)
}
