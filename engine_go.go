package engine

import (
	"fmt"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"github.com/yuin/gluamapper"
)

// hostPackage is the package scripts import to reach registered natives.
const hostPackage = "host"

type goRuntime struct {
	i       *interp.Interpreter
	symbols map[string]reflect.Value
	fn      map[string]reflect.Value
	ready   bool
}

// GoEngine interprets Go source with yaegi. Natives are exported from the
// host package under upper camel case names, so println is called as
// host.Println. Objects are map[string]interface{}.
type GoEngine struct {
	rt    *goRuntime
	opts  options
	owned bool
	stack *valueStack[interface{}]
}

func NewGoEngine(opts ...Option) *GoEngine {
	rt := &goRuntime{
		i:       interp.New(interp.Options{}),
		symbols: make(map[string]reflect.Value),
		fn:      make(map[string]reflect.Value),
	}
	if err := rt.i.Use(stdlib.Symbols); err != nil {
		panic(err)
	}
	return &GoEngine{
		rt:    rt,
		opts:  buildOptions(opts),
		owned: true,
		stack: &valueStack[interface{}]{},
	}
}

func (e *GoEngine) view(args []interface{}, arity int) *GoEngine {
	return &GoEngine{
		rt:    e.rt,
		opts:  e.opts,
		stack: newCallStack[interface{}](nil, nil, args, arity),
	}
}

// NativeName returns the identifier a native registered as name is
// exported under in the host package.
func NativeName(name string) string {
	return gluamapper.ToUpperCamelCase(name)
}

func (e *GoEngine) Owned() bool {
	return e.owned
}

// setReady imports the host package once, before the first evaluation.
func (e *GoEngine) setReady() error {
	if e.rt.ready {
		return nil
	}
	e.use()
	if _, err := e.rt.i.Eval(fmt.Sprintf("import %q", hostPackage)); err != nil {
		return err
	}
	e.rt.ready = true
	return nil
}

func (e *GoEngine) use() {
	symbols := map[string]map[string]reflect.Value{
		hostPackage + "/" + hostPackage: e.rt.symbols,
	}
	if err := e.rt.i.Use(symbols); err != nil {
		e.opts.logger.Warn("host symbols not installed", "engine", TypeEngineGo, "error", err)
	}
}

func (e *GoEngine) Eval(source string) {
	if err := e.setReady(); err != nil {
		e.report(err)
		return
	}
	if _, err := e.rt.i.Eval(source); err != nil {
		e.report(err)
	}
}

func (e *GoEngine) EvalFile(path string) {
	if err := e.setReady(); err != nil {
		e.report(err)
		return
	}
	if _, err := e.rt.i.EvalPath(path); err != nil {
		e.report(err)
	}
}

func (e *GoEngine) report(err error) {
	fmt.Fprintln(e.opts.stderr, err)
	e.opts.logger.Debug("script failed", "engine", TypeEngineGo, "error", err)
}

func (e *GoEngine) Register(fn NativeFunc, name string, arity int) {
	e.rt.symbols[NativeName(name)] = reflect.ValueOf(func(args ...interface{}) interface{} {
		v := e.view(args, arity)
		base := v.stack.top()
		fn(v)
		return v.stack.returned(base)
	})
	if e.rt.ready {
		e.use()
	}
	e.opts.logger.Debug("registered native function", "engine", TypeEngineGo, "name", NativeName(name), "arity", arity)
}

func (e *GoEngine) PushUndefined() {
	e.stack.push(nil)
}

func (e *GoEngine) PushNumber(n float64) {
	e.stack.push(n)
}

func (e *GoEngine) PushBoolean(b bool) {
	e.stack.push(b)
}

func (e *GoEngine) PushString(s string) {
	e.stack.push(s)
}

func (e *GoEngine) NewObject() {
	e.stack.push(make(map[string]interface{}))
}

func (e *GoEngine) SetProperty(idx int, name string) {
	target := e.stack.get(idx)
	val := e.stack.pop()
	obj, ok := target.(map[string]interface{})
	if !ok {
		panic(fmt.Errorf("%w: cannot set %q on %T", ErrNotObject, name, target))
	}
	obj[name] = val
}

func (e *GoEngine) ToString(idx int) string {
	return fmt.Sprint(e.stack.get(idx))
}

func (e *GoEngine) GetTop() int {
	return e.stack.top()
}

// SetGlobal exports value from the host package under name. Values other
// than functions are exported as addressable variables.
func (e *GoEngine) SetGlobal(name string, value interface{}) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		e.opts.logger.Warn("nil global not exported", "engine", TypeEngineGo, "name", name)
		return
	}
	if rv.Kind() != reflect.Func {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		rv = p.Elem()
	}
	e.rt.symbols[NativeName(name)] = rv
	if e.rt.ready {
		e.use()
	}
}

func (e *GoEngine) lookup(scriptFuncName string) (reflect.Value, error) {
	if f, ok := e.rt.fn[scriptFuncName]; ok {
		return f, nil
	}
	if err := e.setReady(); err != nil {
		return reflect.Value{}, err
	}
	f, err := e.rt.i.Eval(scriptFuncName)
	if err != nil {
		return reflect.Value{}, err
	}
	if f.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("engine: %s is not a function", scriptFuncName)
	}
	e.rt.fn[scriptFuncName] = f
	return f, nil
}

func (e *GoEngine) IsFunction(scriptFuncName string) bool {
	_, err := e.lookup(scriptFuncName)
	return err == nil
}

func (e *GoEngine) Call(scriptFuncName string, retNum int, args ...interface{}) ([]interface{}, error) {
	f, err := e.lookup(scriptFuncName)
	if err != nil {
		return nil, err
	}
	params := make([]reflect.Value, 0, len(args))
	for i := 0; i < len(args); i++ {
		params = append(params, reflect.ValueOf(args[i]))
	}
	rets := f.Call(params)

	results := make([]interface{}, 0, len(rets))
	for i := 0; i < len(rets) && i < retNum; i++ {
		results = append(results, rets[i].Interface())
	}
	return results, nil
}

// Close drops the interpreter if e owns it.
func (e *GoEngine) Close() {
	if !e.owned || e.rt == nil {
		return
	}
	e.rt = nil
	e.stack = nil
	e.opts.logger.Debug("engine released", "engine", TypeEngineGo)
}
