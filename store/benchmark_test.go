package store

import (
	"context"
	"testing"
	"time"

	"github.com/virgil28labs/timesync/models"
)

func BenchmarkRecordEvent(b *testing.B) {
	ctx := context.Background()
	st := NewSQLiteStore(Params{})
	if err := st.Open(ctx); err != nil {
		b.Fatalf("open: %v", err)
	}
	defer st.Close()

	ev := models.SyncEvent{Kind: models.EventLeaderChanged, PeerID: "A", LeaderID: "A", IsLeader: true, OccurredAt: t0}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ev.OccurredAt = t0.Add(time.Duration(i) * time.Millisecond)
		if _, err := st.RecordEvent(ctx, ev); err != nil {
			b.Fatalf("record: %v", err)
		}
	}
}

func BenchmarkListEventsSince(b *testing.B) {
	ctx := context.Background()
	st := NewSQLiteStore(Params{})
	if err := st.Open(ctx); err != nil {
		b.Fatalf("open: %v", err)
	}
	defer st.Close()

	for i := 0; i < 1000; i++ {
		ev := models.SyncEvent{Kind: models.EventPeerJoined, PeerID: "A", OccurredAt: t0.Add(time.Duration(i) * time.Second)}
		if _, err := st.RecordEvent(ctx, ev); err != nil {
			b.Fatalf("record: %v", err)
		}
	}
	cutoff := t0.Add(500 * time.Second)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := st.ListEventsSince(ctx, cutoff, 100); err != nil {
			b.Fatalf("list: %v", err)
		}
	}
}
