package zrpc_test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zrpc-go/zrpc"
	"github.com/zrpc-go/zrpc/internal/wire"
	"github.com/zrpc-go/zrpc/metadata"
	"github.com/zrpc-go/zrpc/serializer/msgpack"
	"github.com/zrpc-go/zrpc/transport/inproc"
)

type addHandler struct{}

func (addHandler) Add(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	a, _ := args[0].(float64)
	b, _ := args[1].(float64)
	return a + b, nil
}

func (addHandler) Boom(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	return nil, zrpc.NewBuiltinError("ValueError", "boom")
}

// Echo reads the caller-supplied request metadata and echoes it back
// as response trailer metadata, tagged so the test can tell the
// handler actually saw it rather than the trailer being stray state.
func (addHandler) Echo(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	incoming := metadata.FromIncomingContext(ctx)
	outgoing := metadata.FromOutgoingContext(ctx)
	for k, v := range incoming {
		outgoing["echo-"+k] = v
	}
	return float64(len(incoming)), nil
}

func init() {
	zrpc.Mark(addHandler{}, "Add")
	zrpc.Mark(addHandler{}, "Boom")
	zrpc.Mark(addHandler{}, "Echo")
}

func newTestServer(t *testing.T) (*inproc.Router, *zrpc.Server) {
	t.Helper()
	root := zrpc.NewMapHandler().Sub("ns", zrpc.NewStructHandler(addHandler{}))
	router := inproc.NewRouter()
	server, err := zrpc.StartServer(router, root)
	require.NoError(t, err)
	go server.Serve(context.Background())
	t.Cleanup(func() { server.Close() })
	return router, server
}

// S1: rpc.ns.Add(2, 3) resolves to 5.
func TestScenarioCallResolvesResult(t *testing.T) {
	router, _ := newTestServer(t)
	client, err := zrpc.OpenClient(router.Connect())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := client.Proxy().NS("ns").NS("Add").Call(ctx, []any{float64(2), float64(3)}, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(5), result)
}

// S2: an unresolvable dotted name rejects with NotFoundError.
func TestScenarioMissingMethodNotFound(t *testing.T) {
	router, _ := newTestServer(t)
	client, err := zrpc.OpenClient(router.Connect())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = client.Proxy().NS("ns").NS("Missing").Call(ctx, nil, nil)
	require.Error(t, err)

	var nf *zrpc.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "ns.Missing", nf.Name)
}

// S3: a handler-raised builtin error round-trips with its identifier
// and arguments intact.
func TestScenarioHandlerRaisesBuiltinError(t *testing.T) {
	router, _ := newTestServer(t)
	client, err := zrpc.OpenClient(router.Connect())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = client.Proxy().NS("ns").NS("Boom").Call(ctx, nil, nil)
	require.Error(t, err)

	var ra zrpc.RemoteArgs
	require.True(t, errors.As(err, &ra))
	assert.Equal(t, "builtins.ValueError", ra.Identifier())
	assert.Equal(t, []any{"boom"}, ra.Args())
}

// S4: many concurrent calls from different goroutines each get their
// own distinct result without cross-talk.
func TestScenarioConcurrentCallsDoNotInterleave(t *testing.T) {
	router, _ := newTestServer(t)
	client, err := zrpc.OpenClient(router.Connect())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	results := make([]any, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			results[i], errs[i] = client.Proxy().NS("ns").NS("Add").Call(ctx, []any{float64(i), float64(1)}, nil)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, float64(i+1), results[i])
	}
}

// S7: request metadata attached via the outgoing context reaches the
// handler as incoming metadata.
func TestScenarioRequestMetadataReachesHandler(t *testing.T) {
	router, _ := newTestServer(t)
	client, err := zrpc.OpenClient(router.Connect())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ctx = metadata.NewOutgoingContext(ctx, metadata.MD{"trace-id": "abc123"})

	result, err := client.Proxy().NS("ns").NS("Echo").Call(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), result)
}

// fakeClientTransport gives the remaining scenarios full control over
// what frames arrive and in what order, standing in for a server that
// deliberately misbehaves or reorders replies.
type fakeClientTransport struct {
	writes chan [][]byte
	inbox  chan [][]byte
	closed chan struct{}
}

func newFakeClientTransport() *fakeClientTransport {
	return &fakeClientTransport{
		writes: make(chan [][]byte, 16),
		inbox:  make(chan [][]byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeClientTransport) Write(ctx context.Context, frames [][]byte) error {
	select {
	case f.writes <- frames:
		return nil
	case <-f.closed:
		return fmt.Errorf("fake transport closed")
	}
}

func (f *fakeClientTransport) Read(ctx context.Context) ([][]byte, error) {
	select {
	case frames := <-f.inbox:
		return frames, nil
	case <-f.closed:
		return nil, fmt.Errorf("fake transport closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeClientTransport) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func packResponse(t *testing.T, reqID uint32, isError bool, payload any) [][]byte {
	t.Helper()
	p := msgpack.NewPacker()
	blob, err := p.Pack(payload)
	require.NoError(t, err)
	header := wire.ResponseHeader{
		Prefix:    wire.NewInstancePrefix(1, 1),
		ReqID:     reqID,
		Timestamp: 0,
		IsError:   isError,
	}
	return [][]byte{header.Encode(), blob}
}

func readReqID(t *testing.T, frames [][]byte) uint32 {
	t.Helper()
	require.Len(t, frames, 4)
	return binary.LittleEndian.Uint32(frames[0][4:8])
}

// S5: a response for an unrecognized req_id is logged and dropped; the
// genuinely outstanding call is unaffected and still resolves.
func TestScenarioUnknownResponseIDIsIgnored(t *testing.T) {
	ft := newFakeClientTransport()
	client, err := zrpc.OpenClient(ft)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)
	go func() {
		r, err := client.Call(ctx, "ns.Add", []any{float64(1), float64(2)}, nil)
		resultCh <- r
		errCh <- err
	}()

	sent := <-ft.writes
	reqID := readReqID(t, sent)

	ft.inbox <- packResponse(t, reqID+777, false, float64(999))
	ft.inbox <- packResponse(t, reqID, false, float64(3))

	select {
	case r := <-resultCh:
		require.NoError(t, <-errCh)
		assert.Equal(t, float64(3), r)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not resolve after unknown response id was dropped")
	}
}

// S6: replies arriving out of order (R2, R1, R3) each still resolve
// their own matching call by req_id, never by arrival order.
func TestScenarioOutOfOrderResponsesResolveCorrectly(t *testing.T) {
	ft := newFakeClientTransport()
	client, err := zrpc.OpenClient(ft)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	results := make([]chan outcome, 3)
	reqIDs := make([]uint32, 3)

	for i := 0; i < 3; i++ {
		i := i
		results[i] = make(chan outcome, 1)
		go func() {
			r, err := client.Call(ctx, "ns.Add", []any{float64(i), float64(0)}, nil)
			results[i] <- outcome{r, err}
		}()
		sent := <-ft.writes
		reqIDs[i] = readReqID(t, sent)
	}

	// Reply in the order R2, R1, R3.
	ft.inbox <- packResponse(t, reqIDs[1], false, float64(100+1))
	ft.inbox <- packResponse(t, reqIDs[0], false, float64(100+0))
	ft.inbox <- packResponse(t, reqIDs[2], false, float64(100+2))

	for i := 0; i < 3; i++ {
		select {
		case o := <-results[i]:
			require.NoError(t, o.err)
			assert.Equal(t, float64(100+i), o.result)
		case <-time.After(2 * time.Second):
			t.Fatalf("call %d did not resolve", i)
		}
	}
}
