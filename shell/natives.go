package shell

import (
	"fmt"
	"io"
	"strings"

	engine "github.com/icyseptember2237/enginesh"
)

// RegisterNatives installs println and create_object into e. println
// writes to w.
func RegisterNatives(e engine.Engine, w io.Writer) {
	e.Register(printlnFunc(w), "println", 0)
	e.Register(createObject, "create_object", 1)
}

// printlnFunc writes its arguments separated by single spaces and a
// newline, and returns undefined.
func printlnFunc(w io.Writer) engine.NativeFunc {
	return func(e engine.Engine) {
		n := e.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i < n; i++ {
			parts = append(parts, e.ToString(i))
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		e.PushUndefined()
	}
}

// createObject returns {foo: 42, bar: true}.
func createObject(e engine.Engine) {
	e.NewObject()

	e.PushNumber(42)
	e.SetProperty(-2, "foo")

	e.PushBoolean(true)
	e.SetProperty(-2, "bar")
}
