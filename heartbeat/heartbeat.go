// Package heartbeat announces this peer's liveness and notices when other
// peers go silent.
package heartbeat

import (
	"time"

	"github.com/virgil28labs/timesync/models"
	"github.com/virgil28labs/timesync/registry"
)

const (
	DefaultInterval       = 2 * time.Second
	DefaultStaleThreshold = 10 * time.Second
)

// Monitor builds heartbeats and prunes the registry it wraps. Like the
// registry, it is driven by a single owner and is not safe for concurrent
// use.
type Monitor struct {
	peers     *registry.Registry
	threshold time.Duration
}

func New(peers *registry.Registry, threshold time.Duration) *Monitor {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return &Monitor{peers: peers, threshold: threshold}
}

func (m *Monitor) Threshold() time.Duration { return m.threshold }

// Beat refreshes self and returns the heartbeat to broadcast.
func (m *Monitor) Beat(now time.Time, isLeader bool) models.SyncMessage {
	self := m.peers.SelfID()
	m.peers.Upsert(self, isLeader, now)
	return models.NewMessage(models.KindHeartbeat, self, now, models.HeartbeatPayload(isLeader))
}

// Observe refreshes the sender of any inbound message and reports whether
// the sender is new. Leader flags in the registry follow the local election,
// so the isLeader a heartbeat advertises is not copied.
func (m *Monitor) Observe(msg models.SyncMessage, at time.Time) bool {
	return m.peers.Touch(msg.SenderID, at)
}

// Prune drops peers silent for longer than the threshold.
func (m *Monitor) Prune(now time.Time) ([]string, bool) {
	return m.peers.PruneStale(now, m.threshold)
}
