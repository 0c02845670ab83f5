package engine

import (
	"errors"
	"fmt"
)

const (
	TypeEngineGo  = "go"
	TypeEngineJs  = "js"
	TypeEngineLua = "lua"
)

var (
	ErrUnknownEngine = errors.New("engine: unknown engine type")
	ErrNotObject     = errors.New("engine: value is not an object")
)

// NativeFunc is a host function callable from scripts. It receives a
// non-owning view of the running engine, reads its arguments through slot
// indices and leaves exactly one value on top of the stack as its result.
// The view must not be retained after the function returns.
type NativeFunc func(e Engine)

// Engine is a binding over one embedded scripting runtime.
//
// Slot indices follow a single convention: 0 is the receiver, 1..n are the
// arguments of the current call, and negative indices count down from the
// top of the stack (-1 is the top). Reads outside the stack yield undefined.
type Engine interface {
	// Owned reports whether Close releases the underlying runtime.
	Owned() bool

	// Eval runs source against the global state. Script errors are written
	// to the engine's error output and are not returned.
	Eval(source string)
	EvalFile(path string)

	// Register installs fn as a global named name. Calls passing fewer than
	// arity arguments see the missing ones as undefined.
	Register(fn NativeFunc, name string, arity int)

	PushUndefined()
	PushNumber(n float64)
	PushBoolean(b bool)
	PushString(s string)
	NewObject()

	// SetProperty pops the top value and stores it as property name of the
	// object at idx. idx is resolved before the pop.
	SetProperty(idx int, name string)
	ToString(idx int) string
	GetTop() int

	SetGlobal(name string, value interface{})
	IsFunction(scriptFuncName string) bool
	Call(scriptFuncName string, retNum int, args ...interface{}) ([]interface{}, error)

	Close()
}

// New returns an owning engine of the given type.
func New(engineType string, opts ...Option) (Engine, error) {
	switch engineType {
	case TypeEngineJs:
		return NewJsEngine(opts...), nil
	case TypeEngineLua:
		return NewLuaEngine(opts...), nil
	case TypeEngineGo:
		return NewGoEngine(opts...), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engineType)
}
