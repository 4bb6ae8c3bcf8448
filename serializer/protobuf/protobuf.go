// Package protobuf provides an alternate zrpc serializer backend for
// callers who prefer protobuf's structpb.Value envelope over raw
// MessagePack. It accepts the same dynamic Go values (slices, maps,
// scalars) the msgpack backend does, wrapping them in a
// structpb.Value so the wire bytes are plain protobuf — useful when a
// deployment already standardizes on google.golang.org/protobuf for
// every other service and wants one wire format across the board.
package protobuf

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zrpc-go/zrpc/serializer"
)

// Packer marshals values by first lifting them into a structpb.Value
// tree, then encoding that tree as a protobuf message.
type Packer struct{}

func NewPacker() *Packer { return &Packer{} }

func (Packer) Pack(v any) ([]byte, error) {
	val, err := structpb.NewValue(normalize(v))
	if err != nil {
		return nil, fmt.Errorf("protobuf: pack: %w", err)
	}
	b, err := proto.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("protobuf: pack: %w", err)
	}
	return b, nil
}

// Unpacker decodes one structpb.Value-wrapped protobuf blob per
// Feed/Unpack pair.
type Unpacker struct {
	blob []byte
}

func NewUnpacker() *Unpacker { return &Unpacker{} }

func (u *Unpacker) Feed(blob []byte) { u.blob = blob }

func (u *Unpacker) Unpack() (any, error) {
	val := &structpb.Value{}
	if err := proto.Unmarshal(u.blob, val); err != nil {
		return nil, fmt.Errorf("protobuf: unpack: %w", err)
	}
	u.blob = nil
	return val.AsInterface(), nil
}

// Factory returns a serializer.Factory producing independent protobuf
// Packer/Unpacker pairs.
func Factory() serializer.Factory {
	return func() (serializer.Packer, serializer.Unpacker) {
		return NewPacker(), NewUnpacker()
	}
}

// normalize widens Go slice/array element types that structpb.NewValue
// cannot accept directly (e.g. []any coming back from reflection) into
// the handful of shapes structpb understands: nil, bool, float64,
// string, []any, map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}
