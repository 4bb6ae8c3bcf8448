package zrpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zrpc-go/zrpc/internal/logging"
	"github.com/zrpc-go/zrpc/internal/wire"
	"github.com/zrpc-go/zrpc/metadata"
	"github.com/zrpc-go/zrpc/serializer"
	"github.com/zrpc-go/zrpc/serializer/msgpack"
)

// Client holds the client-side protocol state: the outstanding-call
// registry, the request-id counter, and the Packer/Unpacker pair. One
// Client owns exactly one ClientTransport.
type Client struct {
	transport ClientTransport
	packer    serializer.Packer
	unpacker  serializer.Unpacker
	errTable  *ErrorTable

	prefix wire.InstancePrefix

	mu      sync.Mutex
	counter uint32
	pending map[uint32]*Future

	closed   chan struct{}
	closeErr error
	once     sync.Once
}

// OpenClient constructs and connects a Client over transport.
// Connect/bind addressing is resolved by whatever built transport,
// never by the client itself.
func OpenClient(transport ClientTransport, opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		serializerFactory: msgpack.Factory(),
		instanceSeed:      uint32(os.Getpid()),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	packer, unpacker := cfg.serializerFactory()
	c := &Client{
		transport: transport,
		packer:    packer,
		unpacker:  unpacker,
		errTable:  newErrorTable(),
		prefix:    wire.NewInstancePrefix(uint16(cfg.instanceSeed%0x10000), uint16(rand.Intn(0x10000))),
		pending:   make(map[uint32]*Future),
		closed:    make(chan struct{}),
	}
	go c.receiveLoop()
	return c, nil
}

// Proxy returns the root of the dynamic attribute-chain call builder:
// client.Proxy().NS("ns").NS("func").Call(ctx, args, nil).
func (c *Client) Proxy() *MethodCall {
	return newMethodCall(c)
}

// allocateID increments the request-id counter, wrapping past
// 0xFFFFFFFF to 0, and composes the 20-byte request header. call() is
// the only caller and may be invoked from multiple application
// goroutines concurrently, so the counter and the collision check are
// taken under c.mu; every other access to the registry (call, the
// receive loop, connectionLost) also goes through c.mu.
func (c *Client) allocateID() (wire.RequestHeader, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// uint32 overflow wraps 0xFFFFFFFF+1 to 0 for free.
	c.counter++
	reqID := c.counter
	if _, exists := c.pending[reqID]; exists {
		panic(fmt.Sprintf("zrpc: request id %d already in flight", reqID))
	}
	header := wire.RequestHeader{
		Prefix:    c.prefix,
		ReqID:     reqID,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
	return header, reqID
}

// call serializes args/kwargs, allocates a request id, registers a
// fresh Future, and writes the request frames. It returns
// immediately; the returned Future resolves when msgReceived matches
// the response. If ctx carries outgoing metadata, it is packed as a
// fifth frame.
func (c *Client) call(ctx context.Context, name string, args []any, kwargs map[string]any) (*Future, error) {
	select {
	case <-c.closed:
		return nil, ErrTransportClosed
	default:
	}

	argsBlob, err := c.packer.Pack(toAnySlice(args))
	if err != nil {
		return nil, fmt.Errorf("zrpc: pack args: %w", err)
	}
	kwargsBlob, err := c.packer.Pack(toAnyMap(kwargs))
	if err != nil {
		return nil, fmt.Errorf("zrpc: pack kwargs: %w", err)
	}

	header, reqID := c.allocateID()
	fut := newFuture()

	c.mu.Lock()
	c.pending[reqID] = fut
	c.mu.Unlock()

	frames := [][]byte{header.Encode(), []byte(name), argsBlob, kwargsBlob}
	if md := metadata.FromOutgoingContext(ctx); len(md) > 0 {
		mdBlob, packErr := c.packer.Pack(md.ToPackable())
		if packErr != nil {
			c.mu.Lock()
			delete(c.pending, reqID)
			c.mu.Unlock()
			return nil, fmt.Errorf("zrpc: pack metadata: %w", packErr)
		}
		frames = append(frames, mdBlob)
	}
	if err := c.transport.Write(ctx, frames); err != nil {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
		return nil, fmt.Errorf("zrpc: write request: %w", err)
	}
	return fut, nil
}

// Call is the direct (non-builder) entry point: invoke name with args
// and kwargs and block for the result.
func (c *Client) Call(ctx context.Context, name string, args []any, kwargs map[string]any) (any, error) {
	fut, err := c.call(ctx, name, args, kwargs)
	if err != nil {
		return nil, err
	}
	return fut.Await(ctx)
}

// receiveLoop is the client's single driver goroutine: it is the only
// goroutine that ever reads c.transport, and it handles responses one
// at a time in arrival order. Pending calls are otherwise resolved only
// by connectionLost, which Close may also run on the caller's goroutine.
func (c *Client) receiveLoop() {
	ctx := context.Background()
	for {
		frames, err := c.transport.Read(ctx)
		if err != nil {
			c.connectionLost(err)
			return
		}
		c.msgReceived(frames)
	}
}

// msgReceived decodes the response header and payload, pops the
// matching pending call, and resolves or rejects its Future. A
// trailing third frame, if present, is decoded as response metadata
// and attached to the Future; if it fails to decode, that is logged at
// critical severity and the Future completes with a nil trailer. A bad
// frame count, a header or payload decode failure, or a response whose
// req_id has no registered call, is logged at critical severity and
// dropped — the Future, if any, is left untouched. An error payload
// that is not an (identifier, args) pair is logged and rejects the
// Future with a GenericError identified as "zrpc.MalformedError".
func (c *Client) msgReceived(frames [][]byte) {
	if len(frames) != 2 && len(frames) != 3 {
		logging.Critical("zrpc: malformed response frame count", zap.Int("frames", len(frames)))
		return
	}
	header, err := wire.DecodeResponseHeader(frames[0])
	if err != nil {
		logging.Critical("zrpc: cannot decode response header", zap.Error(err))
		return
	}

	c.unpacker.Feed(frames[1])
	payload, err := c.unpacker.Unpack()
	if err != nil {
		logging.Critical("zrpc: cannot decode response payload", zap.Uint32("reqID", header.ReqID), zap.Error(err))
		return
	}

	var trailer metadata.MD
	if len(frames) == 3 {
		c.unpacker.Feed(frames[2])
		rawMD, mdErr := c.unpacker.Unpack()
		if mdErr != nil {
			logging.Critical("zrpc: cannot decode response metadata", zap.Uint32("reqID", header.ReqID), zap.Error(mdErr))
		} else {
			trailer = metadata.FromPackable(rawMD)
		}
	}

	c.mu.Lock()
	fut, ok := c.pending[header.ReqID]
	if ok {
		delete(c.pending, header.ReqID)
	}
	c.mu.Unlock()

	if !ok {
		logging.Critical("zrpc: unknown response id", zap.Uint32("reqID", header.ReqID))
		return
	}

	if !header.IsError {
		fut.resolve(payload, trailer)
		return
	}

	identifier, errArgs, ok := parseErrorPayload(payload)
	if !ok {
		logging.Critical("zrpc: malformed error payload", zap.Uint32("reqID", header.ReqID))
		fut.reject(newGenericError("zrpc.MalformedError", nil), trailer)
		return
	}
	fut.reject(c.errTable.translate(identifier, errArgs), trailer)
}

// parseErrorPayload decodes the unpacked (identifier:string,
// args:sequence) tuple an error response carries.
func parseErrorPayload(payload any) (string, []any, bool) {
	tuple, ok := payload.([]any)
	if !ok || len(tuple) != 2 {
		return "", nil, false
	}
	identifier, ok := tuple[0].(string)
	if !ok {
		return "", nil, false
	}
	args, ok := tuple[1].([]any)
	if !ok {
		// a 0- or 1-arg error tuple may decode as a non-slice element
		if tuple[1] == nil {
			args = nil
		} else {
			args = []any{tuple[1]}
		}
	}
	return identifier, args, true
}

// connectionLost releases WaitClosed waiters and rejects every
// still-pending call with ErrTransportClosed.
func (c *Client) connectionLost(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		pending := c.pending
		c.pending = make(map[uint32]*Future)
		c.closeErr = err
		c.mu.Unlock()

		for _, fut := range pending {
			fut.reject(ErrTransportClosed, nil)
		}
		close(c.closed)
	})
}

// Close idempotently tears down the transport.
func (c *Client) Close() error {
	err := c.transport.Close()
	c.connectionLost(errors.Join(ErrTransportClosed, err))
	return err
}

// WaitClosed blocks until the transport signals connection-lost, or
// returns immediately if it already has.
func (c *Client) WaitClosed(ctx context.Context) error {
	select {
	case <-c.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toAnySlice(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}

func toAnyMap(kwargs map[string]any) map[string]any {
	if kwargs == nil {
		return map[string]any{}
	}
	return kwargs
}
