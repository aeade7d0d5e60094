// Package registry tracks the peers this process has heard from.
package registry

import (
	"sort"
	"time"

	"github.com/virgil28labs/timesync/models"
)

// Registry holds one PeerRecord per known peer, including self. It is not
// safe for concurrent use; the coordinator serializes access.
type Registry struct {
	selfID string
	peers  map[string]*models.PeerRecord
}

// New creates a registry that already contains self.
func New(selfID string, now time.Time) *Registry {
	r := &Registry{
		selfID: selfID,
		peers:  make(map[string]*models.PeerRecord),
	}
	r.Upsert(selfID, false, now)
	return r
}

func (r *Registry) SelfID() string { return r.selfID }

// Upsert records a sighting of id at the given time and reports whether the
// peer was previously unknown.
func (r *Registry) Upsert(id string, isLeader bool, at time.Time) bool {
	p, ok := r.peers[id]
	if !ok {
		r.peers[id] = &models.PeerRecord{ID: id, LastSeenAt: at, IsLeader: isLeader}
		return true
	}
	if at.After(p.LastSeenAt) {
		p.LastSeenAt = at
	}
	p.IsLeader = isLeader
	return false
}

// Touch refreshes id without changing its leader flag.
func (r *Registry) Touch(id string, at time.Time) bool {
	p, ok := r.peers[id]
	if !ok {
		return r.Upsert(id, false, at)
	}
	if at.After(p.LastSeenAt) {
		p.LastSeenAt = at
	}
	return false
}

// PruneStale removes every peer other than self that has been silent for
// longer than threshold. It reports the removed ids and whether one of them
// was the leader.
func (r *Registry) PruneStale(now time.Time, threshold time.Duration) ([]string, bool) {
	var removed []string
	leaderRemoved := false
	for id, p := range r.peers {
		if id == r.selfID || !p.Stale(now, threshold) {
			continue
		}
		removed = append(removed, id)
		if p.IsLeader {
			leaderRemoved = true
		}
		delete(r.peers, id)
	}
	sort.Strings(removed)
	return removed, leaderRemoved
}

// SetLeader marks id as leader and clears the flag on every other peer.
func (r *Registry) SetLeader(id string) {
	for pid, p := range r.peers {
		p.IsLeader = pid == id
	}
}

// Leader returns the peer currently flagged as leader.
func (r *Registry) Leader() (string, bool) {
	for id, p := range r.peers {
		if p.IsLeader {
			return id, true
		}
	}
	return "", false
}

func (r *Registry) Has(id string) bool {
	_, ok := r.peers[id]
	return ok
}

func (r *Registry) Len() int { return len(r.peers) }

// IDs returns every known peer id, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a copy of every record, sorted by id.
func (r *Registry) Snapshot() []models.PeerRecord {
	out := make([]models.PeerRecord, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
