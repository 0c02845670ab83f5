package engine

import (
	"fmt"

	"github.com/robertkrimen/otto"
)

type JsEngine struct {
	vm    *otto.Otto
	opts  options
	owned bool
	stack *valueStack[otto.Value]
}

// NewJsEngine returns an owning JavaScript engine.
func NewJsEngine(opts ...Option) *JsEngine {
	return &JsEngine{
		vm:    otto.New(),
		opts:  buildOptions(opts),
		owned: true,
		stack: &valueStack[otto.Value]{undef: otto.UndefinedValue()},
	}
}

// view wraps the runtime for the duration of one native call.
func (e *JsEngine) view(call otto.FunctionCall, arity int) *JsEngine {
	return &JsEngine{
		vm:    call.Otto,
		opts:  e.opts,
		stack: newCallStack(otto.UndefinedValue(), call.This, call.ArgumentList, arity),
	}
}

func (e *JsEngine) Owned() bool {
	return e.owned
}

func (e *JsEngine) Eval(source string) {
	if _, err := e.vm.Run(source); err != nil {
		e.report(err)
	}
}

func (e *JsEngine) EvalFile(path string) {
	script, err := e.vm.Compile(path, nil)
	if err != nil {
		e.report(err)
		return
	}
	if _, err = e.vm.Run(script); err != nil {
		e.report(err)
	}
}

func (e *JsEngine) report(err error) {
	fmt.Fprintln(e.opts.stderr, err)
	e.opts.logger.Debug("script failed", "engine", TypeEngineJs, "error", err)
}

func (e *JsEngine) Register(fn NativeFunc, name string, arity int) {
	e.vm.Set(name, func(call otto.FunctionCall) otto.Value {
		v := e.view(call, arity)
		base := v.stack.top()
		fn(v)
		return v.stack.returned(base)
	})
	e.opts.logger.Debug("registered native function", "engine", TypeEngineJs, "name", name, "arity", arity)
}

func (e *JsEngine) PushUndefined() {
	e.stack.push(otto.UndefinedValue())
}

func (e *JsEngine) PushNumber(n float64) {
	e.stack.push(e.value(n))
}

func (e *JsEngine) PushBoolean(b bool) {
	e.stack.push(e.value(b))
}

func (e *JsEngine) PushString(s string) {
	e.stack.push(e.value(s))
}

func (e *JsEngine) NewObject() {
	obj, err := e.vm.Object(`({})`)
	if err != nil {
		panic(err)
	}
	e.stack.push(obj.Value())
}

func (e *JsEngine) value(v interface{}) otto.Value {
	val, err := e.vm.ToValue(v)
	if err != nil {
		panic(err)
	}
	return val
}

func (e *JsEngine) SetProperty(idx int, name string) {
	target := e.stack.get(idx)
	val := e.stack.pop()
	if !target.IsObject() {
		panic(e.vm.MakeTypeError(fmt.Sprintf("cannot set property '%s' of %s", name, target.String())))
	}
	if err := target.Object().Set(name, val); err != nil {
		panic(err)
	}
}

func (e *JsEngine) ToString(idx int) string {
	return e.stack.get(idx).String()
}

func (e *JsEngine) GetTop() int {
	return e.stack.top()
}

func (e *JsEngine) SetGlobal(name string, value interface{}) {
	e.vm.Set(name, value)
}

func (e *JsEngine) IsFunction(scriptFuncName string) bool {
	val, err := e.vm.Get(scriptFuncName)
	if err != nil {
		return false
	}
	return val.IsFunction()
}

func (e *JsEngine) Call(scriptFuncName string, retNum int, args ...interface{}) ([]interface{}, error) {
	value, err := e.vm.Call(scriptFuncName, nil, args...)
	if err != nil {
		return nil, err
	}
	if retNum == 0 {
		return nil, nil
	}
	data, err := value.Export()
	if err != nil {
		return nil, err
	}
	return []interface{}{data}, nil
}

// Close drops the runtime if e owns it. Views are left untouched.
func (e *JsEngine) Close() {
	if !e.owned || e.vm == nil {
		return
	}
	e.vm = nil
	e.stack = nil
	e.opts.logger.Debug("engine released", "engine", TypeEngineJs)
}
