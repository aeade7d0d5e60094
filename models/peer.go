package models

import "time"

// PeerRecord is one known peer, including self.
type PeerRecord struct {
	ID         string    `json:"id"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	IsLeader   bool      `json:"isLeader"`
}

// Stale reports whether the peer has been silent for longer than threshold.
func (p PeerRecord) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.LastSeenAt) > threshold
}
