package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// DataChannelLabel names the auxiliary channel created on every peer.
const DataChannelLabel = "meet"

// DataType identifies a data-channel message.
type DataType string

const (
	DataMediaState DataType = "media-state"
	DataApp        DataType = "app"
)

// TrackKind is the local track a media-state message refers to.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// DataMessage is the msgpack envelope for all data-channel messages.
type DataMessage struct {
	Type    DataType           `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

type MediaState struct {
	Kind    TrackKind `msgpack:"kind"`
	Enabled bool      `msgpack:"enabled"`
}

// AppPayload carries an opaque JSON document (chat, file sharing).
type AppPayload struct {
	JSON []byte `msgpack:"json"`
}

func NewDataMessage(t DataType, payload any) ([]byte, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("data message %s: %w", t, err)
	}
	return msgpack.Marshal(DataMessage{Type: t, Payload: b})
}

func DecodeDataMessage(b []byte) (DataMessage, error) {
	var m DataMessage
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return DataMessage{}, fmt.Errorf("decode data message: %w", err)
	}
	return m, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m DataMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}
