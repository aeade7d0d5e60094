package transport

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/virgil28labs/timesync/models"
)

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec converts messages to and from their wire form.
type Codec interface {
	Name() string
	Marshal(msg models.SyncMessage) ([]byte, error)
	Unmarshal(data []byte) (models.SyncMessage, error)
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// JSONCodec encodes one JSON object per message:
// {"kind", "senderId", "sentAt", "payload"}.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Marshal(msg models.SyncMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSONCodec) Unmarshal(data []byte) (models.SyncMessage, error) {
	var msg models.SyncMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// MsgpackCodec carries the same fields as JSONCodec in MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }

func (MsgpackCodec) Marshal(msg models.SyncMessage) ([]byte, error) {
	return msgpack.Marshal(msg)
}

func (MsgpackCodec) Unmarshal(data []byte) (models.SyncMessage, error) {
	var msg models.SyncMessage
	err := msgpack.Unmarshal(data, &msg)
	return msg, err
}

// decode unmarshals and validates an inbound frame.
func decode(c Codec, data []byte) (models.SyncMessage, error) {
	msg, err := c.Unmarshal(data)
	if err != nil {
		return models.SyncMessage{}, fmt.Errorf("%w: %v", models.ErrMalformed, err)
	}
	if err := msg.Validate(); err != nil {
		return models.SyncMessage{}, err
	}
	return msg, nil
}
