// Package metadata carries out-of-band string key/value pairs alongside
// an RPC call without widening the wire contract.
package metadata

import "context"

type outgoingKey struct{}
type incomingKey struct{}

// MD is a string->string header map attached to a call. It is a plain
// map: whoever holds it may mutate it in place (see FromOutgoingContext).
type MD map[string]string

// NewOutgoingContext attaches md to ctx as the metadata this side is
// about to send: request headers on the client, or a response trailer
// a handler is building on the server.
func NewOutgoingContext(ctx context.Context, md MD) context.Context {
	return context.WithValue(ctx, outgoingKey{}, md)
}

// FromOutgoingContext retrieves any MD previously attached with
// NewOutgoingContext. Returns nil if none was attached. The map
// returned is the same one stored on ctx, so a handler may mutate it
// in place to set response trailer data.
func FromOutgoingContext(ctx context.Context) MD {
	md, _ := ctx.Value(outgoingKey{}).(MD)
	return md
}

// NewIncomingContext attaches md to ctx as the metadata this side just
// received: request headers on the server, or a response trailer the
// client read back after a call.
func NewIncomingContext(ctx context.Context, md MD) context.Context {
	return context.WithValue(ctx, incomingKey{}, md)
}

// FromIncomingContext retrieves any MD previously attached with
// NewIncomingContext. Returns nil if none was attached.
func FromIncomingContext(ctx context.Context) MD {
	md, _ := ctx.Value(incomingKey{}).(MD)
	return md
}

// ToPackable converts md into the map[string]any shape this module's
// Packer/Unpacker pairs exchange, since map[string]string is not
// itself one of the dynamic shapes they round-trip.
func (md MD) ToPackable() map[string]any {
	if len(md) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// FromPackable reconstructs an MD from the map[string]any shape an
// Unpacker hands back. Returns nil if v isn't such a map.
func FromPackable(v any) MD {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	md := make(MD, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			md[k] = s
		}
	}
	return md
}
