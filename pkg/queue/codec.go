package queue

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes queue snapshots for the store.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return "msgpack" }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

var (
	// JSONCodec stores snapshots as JSON. It is the default.
	JSONCodec Codec = jsonCodec{}

	// MsgpackCodec stores snapshots as MessagePack, which is smaller for
	// large queues.
	MsgpackCodec Codec = msgpackCodec{}
)

// CodecByName resolves "json" or "msgpack". An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", JSONCodec.Name():
		return JSONCodec, nil
	case MsgpackCodec.Name():
		return MsgpackCodec, nil
	default:
		return nil, fmt.Errorf("unknown queue codec %q", name)
	}
}
