package zrpc

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zrpc-go/zrpc/internal/logging"
	"github.com/zrpc-go/zrpc/internal/wire"
	"github.com/zrpc-go/zrpc/metadata"
	"github.com/zrpc-go/zrpc/serializer"
	"github.com/zrpc-go/zrpc/serializer/msgpack"
)

// Server holds the server-side protocol state: the root handler tree,
// the shared stateless Packer, a fresh-Unpacker-per-request factory,
// and the instance prefix attached to every response.
//
// Requests are dispatched one goroutine per request (see Serve), so
// the Unpacker — which holds per-call decode state — cannot be shared
// across concurrently in-flight requests the way the Packer (stateless)
// can; newUnpacker gives each request its own.
type Server struct {
	transport         ServerTransport
	handler           Handler
	packer            serializer.Packer
	serializerFactory serializer.Factory

	prefix wire.InstancePrefix

	stop chan struct{}
}

// StartServer constructs a Server bound to transport and driven by the
// given root handler. Callers must call Serve to begin processing
// requests.
func StartServer(transport ServerTransport, handler Handler, opts ...ServerOption) (*Server, error) {
	cfg := &serverConfig{
		serializerFactory: msgpack.Factory(),
		instanceSeed:      uint32(os.Getpid()),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	packer, _ := cfg.serializerFactory()
	return &Server{
		transport:         transport,
		handler:           handler,
		packer:            packer,
		serializerFactory: cfg.serializerFactory,
		prefix:            wire.NewInstancePrefix(uint16(cfg.instanceSeed%0x10000), uint16(rand.Intn(0x10000))),
		stop:              make(chan struct{}),
	}, nil
}

func (s *Server) newUnpacker() serializer.Unpacker {
	_, unpacker := s.serializerFactory()
	return unpacker
}

// Serve blocks, reading and dispatching requests until the transport is
// closed, an unrecoverable transport error occurs, or Close is called.
// Each request is dispatched on its own goroutine so a slow or
// asynchronous handler never blocks concurrently in-flight calls from
// other peers.
func (s *Server) Serve(ctx context.Context) error {
	for {
		select {
		case <-s.stop:
			return nil
		default:
		}

		peer, frames, err := s.transport.Read(ctx)
		if err != nil {
			return err
		}
		go s.msgReceived(ctx, peer, frames)
	}
}

// Close stops Serve and tears down the transport.
func (s *Server) Close() error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	return s.transport.Close()
}

// msgReceived decodes the request header, resolves the dotted name
// through dispatch, decodes args/kwargs, invokes the handler, and
// routes the result through processCallResult. A trailing fifth
// frame, if present, is decoded as request metadata and made available
// to the handler through metadata.FromIncomingContext; the handler may
// also set response trailer metadata through
// metadata.FromOutgoingContext(ctx), which processCallResult reads
// back and ships as an optional third response frame.
func (s *Server) msgReceived(ctx context.Context, peer []byte, frames [][]byte) {
	if len(frames) != 4 && len(frames) != 5 {
		logging.Critical("zrpc: malformed request frame count", zap.Int("frames", len(frames)))
		return
	}
	header, err := wire.DecodeRequestHeader(frames[0])
	if err != nil {
		logging.Critical("zrpc: cannot decode request header", zap.Error(err))
		return
	}
	name := string(frames[1])

	fn, dispatchErr := s.dispatch(name)
	if dispatchErr != nil {
		s.processCallResult(ctx, peer, header.ReqID, nil, dispatchErr, nil)
		return
	}

	unpacker := s.newUnpacker()
	unpacker.Feed(frames[2])
	rawArgs, err := unpacker.Unpack()
	if err != nil {
		logging.Critical("zrpc: cannot decode request args", zap.Uint32("reqID", header.ReqID), zap.Error(err))
		return
	}
	unpacker.Feed(frames[3])
	rawKwargs, err := unpacker.Unpack()
	if err != nil {
		logging.Critical("zrpc: cannot decode request kwargs", zap.Uint32("reqID", header.ReqID), zap.Error(err))
		return
	}

	args, _ := rawArgs.([]any)
	kwargs, _ := asStringMap(rawKwargs)

	if len(frames) == 5 {
		unpacker.Feed(frames[4])
		rawMD, mdErr := unpacker.Unpack()
		if mdErr != nil {
			logging.Critical("zrpc: cannot decode request metadata", zap.Uint32("reqID", header.ReqID), zap.Error(mdErr))
			return
		}
		ctx = metadata.NewIncomingContext(ctx, metadata.FromPackable(rawMD))
	}
	outgoingMD := metadata.MD{}
	ctx = metadata.NewOutgoingContext(ctx, outgoingMD)

	result, handlerErr := invoke(ctx, fn, args, kwargs)
	s.processCallResult(ctx, peer, header.ReqID, result, handlerErr, outgoingMD)
}

// invoke runs fn, recovering a panic into an error so one misbehaving
// handler never takes down the server goroutine that called it.
func invoke(ctx context.Context, fn HandlerFunc, args []any, kwargs map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("zrpc: handler panicked: %v", r)
		}
	}()
	return fn(ctx, args, kwargs)
}

// processCallResult frames and writes either the successful result or
// the translated error payload back to peer. A non-empty trailer is
// packed as an optional third response frame.
func (s *Server) processCallResult(ctx context.Context, peer []byte, reqID uint32, result any, err error, trailer metadata.MD) {
	header := wire.ResponseHeader{
		Prefix:    s.prefix,
		ReqID:     reqID,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		IsError:   err != nil,
	}

	var payload any
	if err != nil {
		identifier, args := identifierAndArgsFor(err)
		payload = []any{identifier, args}
	} else {
		payload = result
	}

	blob, packErr := s.packer.Pack(payload)
	if packErr != nil {
		logging.Error("zrpc: cannot pack response payload", zap.Uint32("reqID", reqID), zap.Error(packErr))
		return
	}

	frames := [][]byte{header.Encode(), blob}
	if len(trailer) > 0 {
		mdBlob, mdErr := s.packer.Pack(trailer.ToPackable())
		if mdErr != nil {
			logging.Error("zrpc: cannot pack response metadata", zap.Uint32("reqID", reqID), zap.Error(mdErr))
		} else {
			frames = append(frames, mdBlob)
		}
	}
	if writeErr := s.transport.Write(ctx, peer, frames); writeErr != nil {
		logging.Error("zrpc: cannot write response", zap.Uint32("reqID", reqID), zap.Error(writeErr))
	}
}

// dispatch resolves a dotted name to a HandlerFunc by walking the
// handler tree segment by segment, exact string match only, no
// wildcards.
func (s *Server) dispatch(name string) (HandlerFunc, error) {
	if name == "" {
		return nil, newNotFoundError(name)
	}

	lastDot := strings.LastIndexByte(name, '.')
	var namespacePath, leaf string
	if lastDot < 0 {
		leaf = name
	} else {
		namespacePath = name[:lastDot]
		leaf = name[lastDot+1:]
	}

	current := s.handler
	if namespacePath != "" {
		for _, segment := range strings.Split(namespacePath, ".") {
			node, ok := current.Lookup(segment)
			if !ok || !node.isHandler() {
				return nil, newNotFoundError(name)
			}
			current = node.Sub
		}
	}

	node, ok := current.Lookup(leaf)
	if !ok || !node.isLeaf() {
		return nil, newNotFoundError(name)
	}
	return node.Leaf, nil
}

// asStringMap coerces an unpacked kwargs value into map[string]any.
// Some serializer backends (e.g. protobuf's structpb round-trip) hand
// back keys as plain strings already; this also tolerates a nil/empty
// mapping decoding as nil.
func asStringMap(v any) (map[string]any, bool) {
	if v == nil {
		return map[string]any{}, true
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, false
	}
	return m, true
}
