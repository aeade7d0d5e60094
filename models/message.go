package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformed is returned by Validate when an inbound message fails shape
// validation.
var ErrMalformed = errors.New("malformed sync message")

// Kind identifies the purpose of a SyncMessage.
type Kind string

const (
	KindHeartbeat Kind = "HEARTBEAT"
	KindElection  Kind = "ELECTION"
	KindTimeSync  Kind = "TIME_SYNC"
	KindDrift     Kind = "DRIFT"
)

// Kinds lists every known message kind.
var Kinds = []Kind{KindHeartbeat, KindElection, KindTimeSync, KindDrift}

func (k Kind) Valid() bool {
	switch k {
	case KindHeartbeat, KindElection, KindTimeSync, KindDrift:
		return true
	}
	return false
}

// Payload keys.
const (
	PayloadIsLeader        = "isLeader"
	PayloadCurrentTimeText = "currentTimeText"
	PayloadCurrentDateText = "currentDateText"
	PayloadDrift           = "drift"
)

// SyncMessage is the unit exchanged between peers. SentAt is milliseconds
// since the Unix epoch.
type SyncMessage struct {
	Kind     Kind           `json:"kind" msgpack:"kind"`
	SenderID string         `json:"senderId" msgpack:"senderId"`
	SentAt   int64          `json:"sentAt" msgpack:"sentAt"`
	Payload  map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// NewMessage builds a message stamped with at.
func NewMessage(kind Kind, senderID string, at time.Time, payload map[string]any) SyncMessage {
	return SyncMessage{
		Kind:     kind,
		SenderID: senderID,
		SentAt:   at.UnixMilli(),
		Payload:  payload,
	}
}

// SentTime returns SentAt as a time.Time.
func (m SyncMessage) SentTime() time.Time {
	return time.UnixMilli(m.SentAt)
}

// Validate checks the message shape, including the payload fields required
// by its kind.
func (m SyncMessage) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, m.Kind)
	}
	if m.SenderID == "" {
		return fmt.Errorf("%w: empty sender", ErrMalformed)
	}
	if m.SentAt <= 0 {
		return fmt.Errorf("%w: invalid sentAt %d", ErrMalformed, m.SentAt)
	}

	switch m.Kind {
	case KindTimeSync:
		if _, ok := m.Text(PayloadCurrentTimeText); !ok {
			return fmt.Errorf("%w: time sync without %s", ErrMalformed, PayloadCurrentTimeText)
		}
		if _, ok := m.Text(PayloadCurrentDateText); !ok {
			return fmt.Errorf("%w: time sync without %s", ErrMalformed, PayloadCurrentDateText)
		}
	case KindDrift:
		if _, ok := m.Number(PayloadDrift); !ok {
			return fmt.Errorf("%w: drift without %s", ErrMalformed, PayloadDrift)
		}
	}
	return nil
}

// Text returns a string payload field.
func (m SyncMessage) Text(key string) (string, bool) {
	v, ok := m.Payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns a boolean payload field.
func (m SyncMessage) Bool(key string) (bool, bool) {
	v, ok := m.Payload[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Number returns a numeric payload field. Decoders disagree on the concrete
// type of numbers, so every integer and float type is accepted.
func (m SyncMessage) Number(key string) (float64, bool) {
	v, ok := m.Payload[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return 0, false
}

// HeartbeatPayload advertises whether the sender considers itself leader.
func HeartbeatPayload(isLeader bool) map[string]any {
	return map[string]any{PayloadIsLeader: isLeader}
}

// TimeSyncPayload carries the leader's rendered time and date.
func TimeSyncPayload(u TimeUpdate) map[string]any {
	return map[string]any{
		PayloadCurrentTimeText: u.CurrentTimeText,
		PayloadCurrentDateText: u.CurrentDateText,
	}
}

// DriftPayload carries a detected drift in milliseconds.
func DriftPayload(drift time.Duration) map[string]any {
	return map[string]any{PayloadDrift: float64(drift) / float64(time.Millisecond)}
}

// Drift returns the drift carried by a DRIFT message.
func (m SyncMessage) Drift() (time.Duration, bool) {
	ms, ok := m.Number(PayloadDrift)
	if !ok {
		return 0, false
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}
