package zrpc

import (
	"errors"
	"fmt"
)

// modulePath is the "origin-module" half of this framework's own error
// identifiers on the wire, e.g. "zrpc.NotFoundError".
const modulePath = "zrpc"

// Error is the base type every zrpc-originated RPC error embeds.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

// NotFoundError is raised when dispatch cannot resolve a dotted method
// name to a callable endpoint.
type NotFoundError struct {
	*Error
	Name string
}

func newNotFoundError(name string) *NotFoundError {
	return &NotFoundError{
		Error: &Error{msg: fmt.Sprintf("method not found: %q", name)},
		Name:  name,
	}
}

// Identifier returns this error's wire identifier, "zrpc.NotFoundError".
func (e *NotFoundError) Identifier() string { return modulePath + ".NotFoundError" }

// Args returns the error-args tuple this error would serialize as.
func (e *NotFoundError) Args() []any { return []any{e.Name} }

// GenericError is reconstructed client-side for any error identifier
// not present in the ErrorTable.
type GenericError struct {
	*Error
	ExcType string
	Args_   []any
}

func newGenericError(excType string, args []any) *GenericError {
	return &GenericError{
		Error:   &Error{msg: fmt.Sprintf("%s%v", excType, args)},
		ExcType: excType,
		Args_:   args,
	}
}

func (e *GenericError) Identifier() string { return e.ExcType }
func (e *GenericError) Args() []any        { return e.Args_ }

// RemoteArgs is implemented by every error kind the ErrorTable can
// construct and serialize: it reports the wire identifier and the
// argument tuple the handler originally raised the error with.
type RemoteArgs interface {
	error
	Identifier() string
	Args() []any
}

// ErrTransportClosed is the transport-level error client futures are
// rejected with when the connection is lost while they are still
// pending.
var ErrTransportClosed = errors.New("zrpc: transport closed")

// builtinError is the constructible representation for the fixed set of
// "builtins.<Name>"-keyed error kinds the ErrorTable seeds at client
// construction.
type builtinError struct {
	name string
	args []any
}

func (e *builtinError) Error() string      { return fmt.Sprintf("%s%v", e.name, e.args) }
func (e *builtinError) Identifier() string { return "builtins." + e.name }
func (e *builtinError) Args() []any        { return e.args }

// builtinKinds is the fixed vocabulary of common exception-shaped error
// kinds this implementation round-trips by name. It is not an attempt
// to enumerate every conceivable error kind, just the handful a
// handler author commonly needs to raise and have a remote caller
// recognize by name.
var builtinKinds = []string{
	"ValueError",
	"TypeError",
	"KeyError",
	"IndexError",
	"LookupError",
	"RuntimeError",
	"StopIteration",
	"NotImplementedError",
	"ZeroDivisionError",
	"AssertionError",
}

// NewBuiltinError constructs a handler-raisable error of one of the
// fixed builtinKinds (e.g. "ValueError"), round-tripping as
// "builtins.<name>" on the wire. Panics if name is not a registered
// builtin kind, since calling it with an unknown name is a programming
// error a test would catch immediately.
func NewBuiltinError(name string, args ...any) error {
	for _, k := range builtinKinds {
		if k == name {
			return &builtinError{name: name, args: args}
		}
	}
	panic(fmt.Sprintf("zrpc: %q is not a registered builtin error kind", name))
}

// errorConstructor builds a RemoteArgs from a wire (identifier, args)
// pair once the identifier has been resolved in the ErrorTable.
type errorConstructor func(args []any) RemoteArgs

// ErrorTable maps wire error identifiers to constructors. It is
// populated once at client construction and never mutated afterward.
type ErrorTable struct {
	constructors map[string]errorConstructor
}

func newErrorTable() *ErrorTable {
	t := &ErrorTable{constructors: make(map[string]errorConstructor)}
	for _, name := range builtinKinds {
		name := name
		t.constructors["builtins."+name] = func(args []any) RemoteArgs {
			return &builtinError{name: name, args: args}
		}
	}
	t.constructors[modulePath+".NotFoundError"] = func(args []any) RemoteArgs {
		name := ""
		if len(args) > 0 {
			if s, ok := args[0].(string); ok {
				name = s
			}
		}
		return newNotFoundError(name)
	}
	t.constructors[modulePath+".GenericError"] = func(args []any) RemoteArgs {
		excType := ""
		var rest []any
		if len(args) > 0 {
			if s, ok := args[0].(string); ok {
				excType = s
			}
		}
		if len(args) > 1 {
			if a, ok := args[1].([]any); ok {
				rest = a
			}
		}
		return newGenericError(excType, rest)
	}
	return t
}

// translate resolves a wire (identifier, args) pair into a RemoteArgs
// error. Identifiers not present in the table fall back to
// GenericError, carrying the original identifier and argument list
// unchanged.
func (t *ErrorTable) translate(identifier string, args []any) RemoteArgs {
	if ctor, ok := t.constructors[identifier]; ok {
		return ctor(args)
	}
	return newGenericError(identifier, args)
}

// identifierAndArgsFor returns the (identifier, args) pair a
// handler-raised error should serialize as on the wire. RemoteArgs
// implementers report their own identifier and argument tuple
// directly. Any other error has no fully-qualified class name to mine,
// so its Go type name (via %T, which already has a "<package>.<Type>"
// shape) stands in as the identifier, with the error's message as its
// sole argument — on the client side, an identifier absent from the
// ErrorTable falls back to GenericError automatically, so this is
// never mistaken for a recognized builtin kind.
func identifierAndArgsFor(err error) (string, []any) {
	var ra RemoteArgs
	if errors.As(err, &ra) {
		return ra.Identifier(), ra.Args()
	}
	return fmt.Sprintf("%T", err), []any{err.Error()}
}
