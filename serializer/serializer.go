// Package serializer defines the value-codec boundary the zrpc core
// consumes: a Packer that turns a Go value into a self-describing byte
// blob, and an Unpacker that turns such a blob back into a value.
//
// The core feeds Packer/Unpacker positional args as one blob, keyword
// args as another, and (on error) a 2-element (identifier, args) blob.
// Concrete implementations live in sibling packages (msgpack, protobuf)
// so the core itself never imports a concrete wire format.
package serializer

// Packer marshals a value into a self-describing byte blob.
type Packer interface {
	Pack(v any) ([]byte, error)
}

// Unpacker unmarshals a self-describing byte blob. Feed must be called
// with a fresh blob before every Unpack; implementations must not leak
// state from a previous Feed/Unpack pair across frames.
type Unpacker interface {
	Feed(blob []byte)
	Unpack() (any, error)
}

// Factory constructs a fresh, independent Packer/Unpacker pair. A Client
// owns one pair; a Server keeps one Packer and draws a fresh Unpacker
// from the factory for every request. Pairs are never shared across
// instances.
type Factory func() (Packer, Unpacker)
