package models

import "time"

// EventKind classifies a SyncEvent.
type EventKind string

const (
	EventStateChanged   EventKind = "state_changed"
	EventLeaderChanged  EventKind = "leader_changed"
	EventPeerJoined     EventKind = "peer_joined"
	EventPeerLost       EventKind = "peer_lost"
	EventDriftCorrected EventKind = "drift_corrected"
	EventMessageSent    EventKind = "message_sent"
	EventMessageRecv    EventKind = "message_received"
	EventSendFailed     EventKind = "send_failed"
	EventSyncApplied    EventKind = "sync_applied"
	EventSyncRejected   EventKind = "sync_rejected"
)

// Journaled reports whether events of this kind are worth keeping in the
// sync journal. Per-message events are only counted.
func (k EventKind) Journaled() bool {
	switch k {
	case EventStateChanged, EventLeaderChanged, EventPeerJoined, EventPeerLost, EventDriftCorrected:
		return true
	}
	return false
}

// SyncEvent describes something that happened in the coordinator.
type SyncEvent struct {
	ID          int64         `json:"id,omitempty"`
	Kind        EventKind     `json:"kind"`
	PeerID      string        `json:"peerId"`
	LeaderID    string        `json:"leaderId,omitempty"`
	IsLeader    bool          `json:"isLeader"`
	Peers       int           `json:"peers,omitempty"`
	Drift       time.Duration `json:"drift,omitempty"`
	Latency     time.Duration `json:"latency,omitempty"`
	MessageKind Kind          `json:"messageKind,omitempty"`
	Detail      string        `json:"detail,omitempty"`
	OccurredAt  time.Time     `json:"occurredAt"`
}
