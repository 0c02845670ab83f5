package engine

import (
	"fmt"
	"net/http"
	"reflect"
	"time"
	"unicode"

	"github.com/ailncode/gluaxmlpath"
	"github.com/ciaos/gluahttp"
	"github.com/cjoudrey/gluaurl"
	"github.com/yuin/gluamapper"
	"github.com/yuin/gluare"
	lua "github.com/yuin/gopher-lua"
	luajson "layeh.com/gopher-json"
	luar "layeh.com/gopher-luar"
)

const httpModuleTimeout = 30 * time.Second

type LuaEngine struct {
	vm    *lua.LState
	opts  options
	owned bool
}

// NewLuaEngine returns an owning Lua engine with the json, url, re, http
// and xmlpath modules available to require.
func NewLuaEngine(opts ...Option) *LuaEngine {
	e := &LuaEngine{
		vm:    lua.NewState(),
		opts:  buildOptions(opts),
		owned: true,
	}
	luajson.Preload(e.vm)
	e.vm.PreloadModule("url", gluaurl.Loader)
	e.vm.PreloadModule("re", gluare.Loader)
	e.vm.PreloadModule("http", gluahttp.NewHttpModule(&http.Client{
		Timeout: httpModuleTimeout,
	}).Loader)
	e.vm.PreloadModule("xmlpath", gluaxmlpath.Loader)
	if e.opts.strict {
		e.strictGlobals()
	}
	return e
}

// strictGlobals makes reads of undeclared globals an error.
func (e *LuaEngine) strictGlobals() {
	mt := e.vm.NewTable()
	e.vm.SetField(mt, "__index", e.vm.NewFunction(func(L *lua.LState) int {
		L.RaiseError("variable '%s' is not declared", L.Get(2).String())
		return 0
	}))
	e.vm.SetMetatable(e.vm.G.Global, mt)
}

// view wraps the calling thread, which may be a coroutine rather than the
// main state.
func (e *LuaEngine) view(L *lua.LState) *LuaEngine {
	return &LuaEngine{vm: L, opts: e.opts}
}

func (e *LuaEngine) Owned() bool {
	return e.owned
}

func (e *LuaEngine) Eval(source string) {
	if err := e.vm.DoString(source); err != nil {
		e.report(err)
	}
}

func (e *LuaEngine) EvalFile(path string) {
	if err := e.vm.DoFile(path); err != nil {
		e.report(err)
	}
}

func (e *LuaEngine) report(err error) {
	fmt.Fprintln(e.opts.stderr, err)
	e.opts.logger.Debug("script failed", "engine", TypeEngineLua, "error", err)
}

func (e *LuaEngine) Register(fn NativeFunc, name string, arity int) {
	e.vm.SetGlobal(name, e.vm.NewFunction(func(L *lua.LState) int {
		for L.GetTop() < arity {
			L.Push(lua.LNil)
		}
		base := L.GetTop()
		fn(e.view(L))
		if L.GetTop() <= base {
			L.Push(lua.LNil)
		}
		return 1
	}))
	e.opts.logger.Debug("registered native function", "engine", TypeEngineLua, "name", name, "arity", arity)
}

// get maps a slot index onto the Lua stack. Inside a native, Lua passes
// no receiver, so slot 0 is nil and slot k is Lua index k. Outside any
// call there is no receiver slot either and slots start at Lua index 1.
func (e *LuaEngine) get(idx int) lua.LValue {
	switch {
	case idx < 0:
		return e.vm.Get(idx)
	case e.owned:
		return e.vm.Get(idx + 1)
	case idx == 0:
		return lua.LNil
	}
	return e.vm.Get(idx)
}

func (e *LuaEngine) PushUndefined() {
	e.vm.Push(lua.LNil)
}

func (e *LuaEngine) PushNumber(n float64) {
	e.vm.Push(lua.LNumber(n))
}

func (e *LuaEngine) PushBoolean(b bool) {
	e.vm.Push(lua.LBool(b))
}

func (e *LuaEngine) PushString(s string) {
	e.vm.Push(lua.LString(s))
}

func (e *LuaEngine) NewObject() {
	e.vm.Push(e.vm.NewTable())
}

func (e *LuaEngine) SetProperty(idx int, name string) {
	target := e.get(idx)
	val := e.vm.Get(-1)
	e.vm.Pop(1)
	if target.Type() != lua.LTTable {
		e.vm.RaiseError("cannot set field '%s' on a %s value", name, target.Type().String())
	}
	e.vm.SetField(target, name, val)
}

func (e *LuaEngine) ToString(idx int) string {
	return e.vm.ToStringMeta(e.get(idx)).String()
}

func (e *LuaEngine) GetTop() int {
	if e.owned {
		return e.vm.GetTop()
	}
	return e.vm.GetTop() + 1
}

// hostToLua converts a host value for scripts. Maps become hash tables,
// slices and arrays become sequences, anything else is wrapped by luar.
func (e *LuaEngine) hostToLua(v interface{}) lua.LValue {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return lua.LNil
	}
	switch rv.Kind() {
	case reflect.Map:
		tbl := e.vm.CreateTable(0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			tbl.RawSet(e.hostToLua(iter.Key().Interface()), e.hostToLua(iter.Value().Interface()))
		}
		return tbl
	case reflect.Slice, reflect.Array:
		tbl := e.vm.CreateTable(rv.Len(), 0)
		for i := 0; i < rv.Len(); i++ {
			tbl.RawSetInt(i+1, e.hostToLua(rv.Index(i).Interface()))
		}
		return tbl
	}
	return luar.New(e.vm, v)
}

// luaToHost converts a script value for the host. Sequences become
// []interface{}; other tables become map[string]interface{} keyed by
// upper camel case field names, the spelling luar uses for Go fields.
func (e *LuaEngine) luaToHost(v lua.LValue) interface{} {
	switch v := v.(type) {
	case *lua.LTable:
		if n := v.MaxN(); n > 0 {
			seq := make([]interface{}, n)
			for i := range seq {
				seq[i] = e.luaToHost(v.RawGetInt(i + 1))
			}
			return seq
		}
		fields := make(map[string]interface{})
		v.ForEach(func(key, val lua.LValue) {
			fields[hostFieldName(key.String())] = e.luaToHost(val)
		})
		return fields
	case *lua.LUserData:
		return v.Value
	}
	return gluamapper.ToGoValue(v, gluamapper.Option{NameFunc: gluamapper.ToUpperCamelCase})
}

func hostFieldName(key string) string {
	if key == "" || !unicode.IsLower(rune(key[0])) {
		return key
	}
	return gluamapper.ToUpperCamelCase(key)
}

func (e *LuaEngine) SetGlobal(name string, value interface{}) {
	e.vm.SetGlobal(name, e.hostToLua(value))
}

// IsFunction reads the global table raw so strict mode does not trip.
func (e *LuaEngine) IsFunction(scriptFuncName string) bool {
	return e.vm.G.Global.RawGetString(scriptFuncName).Type() == lua.LTFunction
}

// Call invokes a global function in protected mode and returns exactly
// retNum results, first result first.
func (e *LuaEngine) Call(scriptFuncName string, retNum int, args ...interface{}) ([]interface{}, error) {
	params := make([]lua.LValue, 0, len(args))
	for _, arg := range args {
		params = append(params, e.hostToLua(arg))
	}

	fn := e.vm.G.Global.RawGetString(scriptFuncName)
	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: retNum, Protect: true}, params...); err != nil {
		return nil, err
	}

	first := e.vm.GetTop() - retNum + 1
	results := make([]interface{}, retNum)
	for i := range results {
		results[i] = e.luaToHost(e.vm.Get(first + i))
	}
	e.vm.Pop(retNum)
	return results, nil
}

// Close releases the Lua state if e owns it.
func (e *LuaEngine) Close() {
	if !e.owned || e.vm == nil {
		return
	}
	e.vm.Close()
	e.vm = nil
	e.opts.logger.Debug("engine released", "engine", TypeEngineLua)
}
