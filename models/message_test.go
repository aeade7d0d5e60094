package models

import (
	"errors"
	"testing"
	"time"
)

func TestSyncMessageValidate(t *testing.T) {
	at := time.Date(2026, 2, 4, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		msg     SyncMessage
		wantErr bool
	}{
		{
			name: "heartbeat",
			msg:  NewMessage(KindHeartbeat, "A", at, HeartbeatPayload(true)),
		},
		{
			name: "election without payload",
			msg:  NewMessage(KindElection, "A", at, nil),
		},
		{
			name: "time sync",
			msg: NewMessage(KindTimeSync, "A", at, TimeSyncPayload(TimeUpdate{
				CurrentTimeText: "12:00:00 PM",
				CurrentDateText: "Wednesday, February 4, 2026",
			})),
		},
		{
			name: "drift",
			msg:  NewMessage(KindDrift, "A", at, DriftPayload(200*time.Millisecond)),
		},
		{
			name:    "unknown kind",
			msg:     NewMessage(Kind("PING"), "A", at, nil),
			wantErr: true,
		},
		{
			name:    "empty sender",
			msg:     NewMessage(KindHeartbeat, "", at, nil),
			wantErr: true,
		},
		{
			name:    "zero sentAt",
			msg:     SyncMessage{Kind: KindHeartbeat, SenderID: "A"},
			wantErr: true,
		},
		{
			name:    "time sync missing date",
			msg:     NewMessage(KindTimeSync, "A", at, map[string]any{PayloadCurrentTimeText: "12:00:00 PM"}),
			wantErr: true,
		},
		{
			name:    "time sync with non-string text",
			msg:     NewMessage(KindTimeSync, "A", at, map[string]any{PayloadCurrentTimeText: 12, PayloadCurrentDateText: "x"}),
			wantErr: true,
		},
		{
			name:    "drift without value",
			msg:     NewMessage(KindDrift, "A", at, map[string]any{}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformed) {
				t.Fatalf("Validate() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestSyncMessageNumberAcceptsDecoderTypes(t *testing.T) {
	values := []any{
		float64(150), float32(150), int(150), int8(100), int16(150), int32(150),
		int64(150), uint(150), uint8(150), uint16(150), uint32(150), uint64(150),
	}
	for _, v := range values {
		msg := SyncMessage{Payload: map[string]any{"n": v}}
		got, ok := msg.Number("n")
		if !ok {
			t.Fatalf("Number(%T) not accepted", v)
		}
		if got <= 0 {
			t.Fatalf("Number(%T) = %v", v, got)
		}
	}

	msg := SyncMessage{Payload: map[string]any{"n": "150"}}
	if _, ok := msg.Number("n"); ok {
		t.Fatalf("expected string value to be rejected")
	}
}

func TestDriftPayloadRoundTrip(t *testing.T) {
	msg := NewMessage(KindDrift, "A", time.Now(), DriftPayload(250*time.Millisecond))
	got, ok := msg.Drift()
	if !ok {
		t.Fatalf("expected drift to be present")
	}
	if got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", got)
	}
}

func TestSentTimeMillisecondPrecision(t *testing.T) {
	at := time.Date(2026, 2, 4, 12, 0, 0, 123456789, time.UTC)
	msg := NewMessage(KindHeartbeat, "A", at, nil)
	want := at.Truncate(time.Millisecond)
	if !msg.SentTime().Equal(want) {
		t.Fatalf("expected %s, got %s", want, msg.SentTime())
	}
}

func TestDriftSampleIsAbsolute(t *testing.T) {
	cases := []struct {
		sample DriftSample
		want   time.Duration
	}{
		{DriftSample{WallClockDelta: 5 * time.Second, MonotonicDelta: 5 * time.Second}, 0},
		{DriftSample{WallClockDelta: 5200 * time.Millisecond, MonotonicDelta: 5 * time.Second}, 200 * time.Millisecond},
		{DriftSample{WallClockDelta: 4800 * time.Millisecond, MonotonicDelta: 5 * time.Second}, 200 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := tc.sample.Drift(); got != tc.want {
			t.Fatalf("Drift() = %s, want %s", got, tc.want)
		}
	}
}

func TestPeerRecordStale(t *testing.T) {
	now := time.Date(2026, 2, 4, 12, 0, 0, 0, time.UTC)
	p := PeerRecord{ID: "A", LastSeenAt: now.Add(-10 * time.Second)}
	if p.Stale(now, 10*time.Second) {
		t.Fatalf("expected peer exactly at threshold to be live")
	}
	if !p.Stale(now.Add(time.Millisecond), 10*time.Second) {
		t.Fatalf("expected peer past threshold to be stale")
	}
}
