package zrpc

import (
	"context"
	"strings"
)

// MethodCall is a dynamic attribute-chain call builder: an immutable
// path-accumulator that, on Call, joins its accumulated segments with
// "." and hands the dotted name to the client protocol.
//
// Callers who have a fixed schema should prefer a generated typed stub
// that calls Client.Call directly; MethodCall is the untyped fallback
// for dynamically-named endpoints.
type MethodCall struct {
	client *Client
	names  []string
}

func newMethodCall(c *Client) *MethodCall {
	return &MethodCall{client: c}
}

// NS accumulates one more dotted-name segment and returns a new
// MethodCall, leaving the receiver untouched.
func (m *MethodCall) NS(segment string) *MethodCall {
	names := make([]string, len(m.names)+1)
	copy(names, m.names)
	names[len(m.names)] = segment
	return &MethodCall{client: m.client, names: names}
}

// Call invokes the accumulated dotted name with args/kwargs and blocks
// for the result. Calling it with zero accumulated segments fails with
// an argument error.
func (m *MethodCall) Call(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	if len(m.names) == 0 {
		return nil, errEmptyMethodName
	}
	name := strings.Join(m.names, ".")
	fut, err := m.client.call(ctx, name, args, kwargs)
	if err != nil {
		return nil, err
	}
	return fut.Await(ctx)
}

var errEmptyMethodName = &Error{msg: "RPC method name is empty"}
