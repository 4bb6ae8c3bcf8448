// Package inproc is the one concrete transport this repository ships,
// standing in for a pair of ZeroMQ DEALER/ROUTER sockets. It is a pure
// in-process implementation — a Router multiplexes any number of
// Dealer peers over buffered Go channels, with a peer-identifying
// frame prepended on the Router's inbound side exactly as a real
// ROUTER socket would prepend one, so zrpc.Server and zrpc.Client can
// be exercised end-to-end without a CGO ZeroMQ binding.
package inproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const inboxSize = 64

// Router implements zrpc.ServerTransport: it is the ROUTER-style
// endpoint that any number of Dealer peers connect to.
type Router struct {
	mu     sync.RWMutex
	peers  map[string]chan [][]byte
	inbox  chan routedMessage
	closed chan struct{}
	once   sync.Once
}

type routedMessage struct {
	peer   []byte
	frames [][]byte
}

// NewRouter creates an unbound Router ready to accept Dealer
// connections via Connect.
func NewRouter() *Router {
	return &Router{
		peers:  make(map[string]chan [][]byte),
		inbox:  make(chan routedMessage, inboxSize),
		closed: make(chan struct{}),
	}
}

// Connect creates a new Dealer peer attached to this Router, the
// in-process analogue of a DEALER socket connecting to a bound ROUTER
// address.
func (r *Router) Connect() *Dealer {
	id := uuid.NewString()
	toPeer := make(chan [][]byte, inboxSize)

	r.mu.Lock()
	r.peers[id] = toPeer
	r.mu.Unlock()

	return &Dealer{
		id:     []byte(id),
		router: r,
		inbox:  toPeer,
		closed: make(chan struct{}),
	}
}

// Read implements zrpc.ServerTransport.
func (r *Router) Read(ctx context.Context) (peer []byte, frames [][]byte, err error) {
	select {
	case msg, ok := <-r.inbox:
		if !ok {
			return nil, nil, fmt.Errorf("inproc: router closed")
		}
		return msg.peer, msg.frames, nil
	case <-r.closed:
		return nil, nil, fmt.Errorf("inproc: router closed")
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// Write implements zrpc.ServerTransport: it routes frames to the Dealer
// peer previously identified by peer, mirroring a real ROUTER socket
// echoing the peer-identity frame back on send.
func (r *Router) Write(ctx context.Context, peer []byte, frames [][]byte) error {
	r.mu.RLock()
	toPeer, ok := r.peers[string(peer)]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("inproc: unknown peer %q", peer)
	}
	select {
	case toPeer <- frames:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.closed:
		return fmt.Errorf("inproc: router closed")
	}
}

// Close tears down the Router and every connected Dealer's inbound
// channel.
func (r *Router) Close() error {
	r.once.Do(func() {
		close(r.closed)
		r.mu.Lock()
		for _, ch := range r.peers {
			close(ch)
		}
		r.peers = map[string]chan [][]byte{}
		r.mu.Unlock()
	})
	return nil
}

func (r *Router) disconnect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.peers[id]; ok {
		delete(r.peers, id)
		close(ch)
	}
}

// Dealer implements zrpc.ClientTransport: the DEALER-style endpoint of
// one Router connection.
type Dealer struct {
	id     []byte
	router *Router
	inbox  chan [][]byte
	closed chan struct{}
	once   sync.Once
}

// Write implements zrpc.ClientTransport by delivering frames to the
// Router with this Dealer's identity frame prepended, as a real DEALER
// socket's outbound frames arrive at a ROUTER with the peer identity
// automatically attached.
func (d *Dealer) Write(ctx context.Context, frames [][]byte) error {
	select {
	case d.router.inbox <- routedMessage{peer: d.id, frames: frames}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.closed:
		return fmt.Errorf("inproc: dealer closed")
	}
}

// Read implements zrpc.ClientTransport.
func (d *Dealer) Read(ctx context.Context) (frames [][]byte, err error) {
	select {
	case frames, ok := <-d.inbox:
		if !ok {
			return nil, fmt.Errorf("inproc: connection closed")
		}
		return frames, nil
	case <-d.closed:
		return nil, fmt.Errorf("inproc: connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close disconnects this Dealer from its Router. Idempotent.
func (d *Dealer) Close() error {
	d.once.Do(func() {
		close(d.closed)
		d.router.disconnect(string(d.id))
	})
	return nil
}
