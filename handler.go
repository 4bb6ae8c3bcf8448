package zrpc

import (
	"context"
	"reflect"
)

// HandlerFunc is the uniform signature every dispatchable RPC endpoint
// has. A handler that wants to do its own asynchronous work launches
// its own goroutine internally and is otherwise indistinguishable to
// the dispatcher.
type HandlerFunc func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Node is what Handler.Lookup resolves a key to: either a sub-Handler
// (dispatch continues into it) or a leaf HandlerFunc (dispatch stops and
// invokes it). A Node is never both.
type Node struct {
	Sub  Handler
	Leaf HandlerFunc
}

func subNode(h Handler) Node       { return Node{Sub: h} }
func leafNode(fn HandlerFunc) Node { return Node{Leaf: fn} }
func (n Node) isLeaf() bool        { return n.Leaf != nil }
func (n Node) isHandler() bool     { return n.Sub != nil }

// Handler is the single capability the server-side dispatcher needs: a
// uniform key -> subhandler-or-callable lookup. Any type implementing
// Lookup satisfies Handler with no explicit marker interface needed.
type Handler interface {
	// Lookup resolves key to a Node. ok is false if key is absent.
	Lookup(key string) (Node, bool)
}

// MapHandler is a Handler backed by an explicit map, for namespaces
// assembled programmatically rather than reflected off a Go struct.
type MapHandler map[string]Node

func (m MapHandler) Lookup(key string) (Node, bool) {
	n, ok := m[key]
	return n, ok
}

// Sub registers a child Handler under name.
func (m MapHandler) Sub(name string, h Handler) MapHandler {
	m[name] = subNode(h)
	return m
}

// Endpoint registers an RPC-callable leaf under name.
func (m MapHandler) Endpoint(name string, fn HandlerFunc) MapHandler {
	m[name] = leafNode(fn)
	return m
}

// NewMapHandler returns an empty MapHandler ready for Sub/Endpoint
// registration.
func NewMapHandler() MapHandler { return make(MapHandler) }

// endpointRegistry tracks which methods of a reflected value have been
// explicitly marked as RPC endpoints via Mark: a method reachable by
// name but never Marked is invisible to dispatch, the framework's sole
// defense against accidentally exposing host-side methods.
type endpointRegistry struct {
	marked map[reflect.Type]map[string]bool
}

var globalEndpoints = &endpointRegistry{marked: make(map[reflect.Type]map[string]bool)}

// Mark tags methodName on the type of receiver as an RPC endpoint.
// Call it once, typically from an init() alongside the type
// definition:
//
//	func init() { zrpc.Mark(Calculator{}, "Add") }
func Mark(receiver any, methodName string) {
	t := reflect.TypeOf(receiver)
	if globalEndpoints.marked[t] == nil {
		globalEndpoints.marked[t] = make(map[string]bool)
	}
	globalEndpoints.marked[t][methodName] = true
}

func isMarked(t reflect.Type, methodName string) bool {
	names, ok := globalEndpoints.marked[t]
	if !ok {
		return false
	}
	return names[methodName]
}

// StructHandler is a Handler that resolves keys against the exported
// methods and fields of an owning Go value. A method is visible as an
// endpoint only if its signature matches HandlerFunc exactly and it
// was registered with Mark; a field is visible as a sub-namespace only
// if it implements Handler. Anything else reachable under the right
// name is reported as missing.
type StructHandler struct {
	value any
}

// NewStructHandler wraps value so its Marked HandlerFunc-shaped methods
// become RPC endpoints, and any Handler-implementing field becomes a
// sub-namespace.
func NewStructHandler(value any) StructHandler {
	return StructHandler{value: value}
}

func (h StructHandler) Lookup(key string) (Node, bool) {
	v := reflect.ValueOf(h.value)
	t := v.Type()

	if _, ok := t.MethodByName(key); ok && isMarked(t, key) {
		methodVal := v.MethodByName(key)
		if fn, ok := methodVal.Interface().(func(context.Context, []any, map[string]any) (any, error)); ok {
			return leafNode(HandlerFunc(fn)), true
		}
	}

	if fv := v.FieldByName(key); fv.IsValid() && fv.CanInterface() {
		if sub, ok := fv.Interface().(Handler); ok {
			return subNode(sub), true
		}
	}
	return Node{}, false
}
