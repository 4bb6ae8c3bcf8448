// Package zrpc implements the core of an asynchronous, namespaced RPC
// framework layered on top of a ZeroMQ-style DEALER/ROUTER transport.
//
// The package owns the client call registry, the server handler-tree
// dispatcher, the wire framing format, and cross-boundary error
// propagation. It deliberately knows nothing about how bytes actually
// reach a peer (see ClientTransport / ServerTransport) or how argument
// values are encoded on the wire (see serializer.Packer /
// serializer.Unpacker) — both are narrow collaborator interfaces
// supplied by the caller.
package zrpc
