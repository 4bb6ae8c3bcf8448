package zrpc

import (
	"context"

	"github.com/zrpc-go/zrpc/metadata"
)

// Future is the client-side handle for one in-flight call: call
// returns one immediately, and it resolves when the matching response
// frame arrives.
type Future struct {
	done    chan struct{}
	val     any
	err     error
	trailer metadata.MD
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(v any, trailer metadata.MD) {
	f.val = v
	f.trailer = trailer
	close(f.done)
}

func (f *Future) reject(err error, trailer metadata.MD) {
	f.err = err
	f.trailer = trailer
	close(f.done)
}

// Await blocks until the future resolves, rejects, or ctx is cancelled.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Trailer returns any metadata the peer attached to the response, or
// nil if none was sent. Only meaningful after Await returns.
func (f *Future) Trailer() metadata.MD {
	return f.trailer
}
