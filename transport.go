package zrpc

import "context"

// ClientTransport is the narrow collaborator a Client drives. It carries
// ordered lists of opaque frames between one local DEALER-style endpoint
// and its peers. The core never interprets transport-level addressing
// (connect/bind strings); those are resolved by whatever constructs the
// ClientTransport.
type ClientTransport interface {
	// Write sends one multi-part message. Implementations must preserve
	// frame order and must not split or coalesce frames.
	Write(ctx context.Context, frames [][]byte) error

	// Read blocks until the next inbound message is available, the
	// context is cancelled, or the connection is lost (io.EOF-like
	// error). The returned frames are owned by the caller.
	Read(ctx context.Context) (frames [][]byte, err error)

	// Close tears down the underlying connection. Idempotent.
	Close() error
}

// ServerTransport is the ROUTER-style counterpart: every inbound message
// is prefixed with an opaque peer frame identifying the originator, and
// every outbound message must echo that frame back so the transport can
// route the reply.
type ServerTransport interface {
	Read(ctx context.Context) (peer []byte, frames [][]byte, err error)
	Write(ctx context.Context, peer []byte, frames [][]byte) error
	Close() error
}
