// Package msgpack adapts github.com/tinylib/msgp's generic interface{}
// codec (msgp.AppendIntf / msgp.ReadIntfBytes) into the zrpc serializer
// boundary: values travel as self-describing MessagePack blobs, with no
// generated schema required for the positional-args tuple or
// keyword-args mapping.
package msgpack

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"github.com/zrpc-go/zrpc/serializer"
)

// Packer packs arbitrary Go values (slices, maps, scalars) into
// MessagePack blobs via msgp's dynamic interface{} encoder.
type Packer struct{}

// NewPacker returns a Packer. Packers are stateless and safe for
// concurrent use, but the zrpc core never shares one across protocol
// instances (see serializer.Factory).
func NewPacker() *Packer { return &Packer{} }

func (Packer) Pack(v any) ([]byte, error) {
	b, err := msgp.AppendIntf(nil, v)
	if err != nil {
		return nil, fmt.Errorf("msgpack: pack: %w", err)
	}
	return b, nil
}

// Unpacker decodes one MessagePack blob per Feed/Unpack pair. It holds
// no state across pairs: Feed always replaces whatever was fed before,
// so a malformed frame can never leave residue for the next one.
type Unpacker struct {
	blob []byte
}

// NewUnpacker returns a fresh Unpacker.
func NewUnpacker() *Unpacker { return &Unpacker{} }

func (u *Unpacker) Feed(blob []byte) {
	u.blob = blob
}

func (u *Unpacker) Unpack() (any, error) {
	v, remaining, err := msgp.ReadIntfBytes(u.blob)
	if err != nil {
		return nil, fmt.Errorf("msgpack: unpack: %w", err)
	}
	u.blob = remaining
	return v, nil
}

// Factory returns a serializer.Factory producing independent msgpack
// Packer/Unpacker pairs, one per client or server protocol instance.
func Factory() serializer.Factory {
	return func() (serializer.Packer, serializer.Unpacker) {
		return NewPacker(), NewUnpacker()
	}
}
