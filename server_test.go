package zrpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandlerFunc(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	return args, nil
}

func TestDispatchResolvesNestedNamespace(t *testing.T) {
	root := NewMapHandler().Sub("a", NewMapHandler().Sub("b", NewMapHandler().Endpoint("c", echoHandlerFunc)))
	s := &Server{handler: root}

	fn, err := s.dispatch("a.b.c")
	require.NoError(t, err)
	require.NotNil(t, fn)
}

func TestDispatchRejectsUnknownSegment(t *testing.T) {
	root := NewMapHandler().Sub("a", NewMapHandler().Endpoint("c", echoHandlerFunc))
	s := &Server{handler: root}

	_, err := s.dispatch("a.missing")
	require.Error(t, err)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "a.missing", nf.Name)
}

func TestDispatchRejectsEmptyName(t *testing.T) {
	s := &Server{handler: NewMapHandler()}
	_, err := s.dispatch("")
	assert.Error(t, err)
}

func TestDispatchRejectsTopLevelNamespaceAsLeaf(t *testing.T) {
	root := NewMapHandler().Sub("a", NewMapHandler())
	s := &Server{handler: root}

	_, err := s.dispatch("a")
	assert.Error(t, err)
}

func TestInvokeRecoversHandlerPanic(t *testing.T) {
	panicky := func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		panic("boom")
	}
	_, err := invoke(context.Background(), panicky, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestInvokePassesThroughResult(t *testing.T) {
	result, err := invoke(context.Background(), echoHandlerFunc, []any{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, result)
}

func TestAsStringMapHandlesNil(t *testing.T) {
	m, ok := asStringMap(nil)
	assert.True(t, ok)
	assert.Empty(t, m)
}

func TestAsStringMapRejectsWrongType(t *testing.T) {
	_, ok := asStringMap("not a map")
	assert.False(t, ok)
}
