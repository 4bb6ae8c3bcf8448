package zrpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calcHandler struct{}

func (calcHandler) Add(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	return nil, nil
}

func (calcHandler) Unmarked(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	return nil, nil
}

func init() {
	Mark(calcHandler{}, "Add")
}

func TestStructHandlerLooksUpMarkedMethod(t *testing.T) {
	h := NewStructHandler(calcHandler{})
	node, ok := h.Lookup("Add")
	require.True(t, ok)
	assert.True(t, node.isLeaf())
}

func TestStructHandlerHidesUnmarkedMethod(t *testing.T) {
	h := NewStructHandler(calcHandler{})
	_, ok := h.Lookup("Unmarked")
	assert.False(t, ok)
}

func TestStructHandlerHidesUnknownKey(t *testing.T) {
	h := NewStructHandler(calcHandler{})
	_, ok := h.Lookup("Nope")
	assert.False(t, ok)
}

func TestMapHandlerSubAndEndpoint(t *testing.T) {
	leaf := func(ctx context.Context, args []any, kwargs map[string]any) (any, error) { return 1, nil }
	root := NewMapHandler().
		Sub("ns", NewMapHandler().Endpoint("fn", leaf))

	node, ok := root.Lookup("ns")
	require.True(t, ok)
	require.True(t, node.isHandler())

	sub := node.Sub
	leafNode, ok := sub.Lookup("fn")
	require.True(t, ok)
	assert.True(t, leafNode.isLeaf())
}

func TestMapHandlerLookupMiss(t *testing.T) {
	root := NewMapHandler()
	_, ok := root.Lookup("missing")
	assert.False(t, ok)
}

type namespaceField struct {
	Ns Handler
}

func TestStructHandlerResolvesSubNamespaceField(t *testing.T) {
	h := NewStructHandler(namespaceField{Ns: NewMapHandler()})
	node, ok := h.Lookup("Ns")
	require.True(t, ok)
	assert.True(t, node.isHandler())
}
