package shell

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engine "github.com/icyseptember2237/enginesh"
)

// fakeLines replays inputs and then fails with err, or io.EOF when err
// is nil.
type fakeLines struct {
	inputs  []string
	err     error
	prompts []string
	history []string
}

func (f *fakeLines) Prompt(prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if len(f.inputs) == 0 {
		if f.err != nil {
			return "", f.err
		}
		return "", io.EOF
	}
	line := f.inputs[0]
	f.inputs = f.inputs[1:]
	return line, nil
}

func (f *fakeLines) AppendHistory(item string) {
	f.history = append(f.history, item)
}

func (f *fakeLines) ReadHistory(r io.Reader) (int, error) {
	n := 0
	s := bufio.NewScanner(r)
	for s.Scan() {
		f.history = append(f.history, s.Text())
		n++
	}
	return n, s.Err()
}

func (f *fakeLines) WriteHistory(w io.Writer) (int, error) {
	for i, item := range f.history {
		if _, err := io.WriteString(w, item+"\n"); err != nil {
			return i, err
		}
	}
	return len(f.history), nil
}

type closeCounter struct {
	engine.Engine
	closed int
}

func (c *closeCounter) Close() {
	c.closed++
	c.Engine.Close()
}

type harness struct {
	shell   *Shell
	lines   *fakeLines
	engine  *closeCounter
	out     *bytes.Buffer
	stderr  *bytes.Buffer
	history string
}

func newHarness(t *testing.T, engineType string, lines *fakeLines, mutate ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		lines:   lines,
		out:     &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		history: filepath.Join(t.TempDir(), DefaultHistoryFile),
	}
	e, err := engine.New(engineType, engine.WithErrorOutput(h.stderr))
	require.NoError(t, err)
	h.engine = &closeCounter{Engine: e}

	cfg := DefaultConfig()
	cfg.Engine = engineType
	cfg.HistoryFile = h.history
	for _, m := range mutate {
		m(&cfg)
	}
	h.shell = New(h.engine, lines, cfg, WithOutput(h.out))
	return h
}

func (h *harness) savedHistory(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.history)
	require.NoError(t, err)
	return string(data)
}

func TestShellExitAsFirstLine(t *testing.T) {
	h := newHarness(t, engine.TypeEngineJs, &fakeLines{inputs: []string{".exit"}})

	require.NoError(t, h.shell.Run())

	assert.Equal(t, StateTerminated, h.shell.State())
	assert.Equal(t, "No previous history.\n", h.out.String())
	assert.Equal(t, ".exit\n", h.savedHistory(t))
	assert.Equal(t, []string{Prompt}, h.lines.prompts)
	assert.Equal(t, 1, h.engine.closed)
}

func TestShellEvaluatesLines(t *testing.T) {
	h := newHarness(t, engine.TypeEngineJs, &fakeLines{inputs: []string{
		`println(1, "a", true)`,
		`println()`,
		`var o = create_object(); println(o.foo, o.bar, typeof o.foo, typeof o.bar)`,
		`.exit`,
	}})

	require.NoError(t, h.shell.Run())

	assert.Empty(t, h.stderr.String())
	assert.Equal(t, "No previous history.\n1 a true\n\n42 true number boolean\n", h.out.String())
	assert.Equal(t, 4, len(h.lines.prompts))
}

func TestShellNativesPerEngine(t *testing.T) {
	tests := []struct {
		engine string
		inputs []string
		want   string
	}{
		{
			engine: engine.TypeEngineJs,
			inputs: []string{`println(1, "a", true)`, `var o = create_object(); println(o.foo, o.bar)`},
			want:   "1 a true\n42 true\n",
		},
		{
			engine: engine.TypeEngineLua,
			inputs: []string{`println(1, "a", true)`, `local o = create_object(); println(o.foo, o.bar)`},
			want:   "1 a true\n42 true\n",
		},
		{
			engine: engine.TypeEngineGo,
			inputs: []string{
				`host.Println(1, "a", true)`,
				`o := host.CreateObject().(map[string]interface{})`,
				`host.Println(o["foo"], o["bar"])`,
			},
			want: "1 a true\n42 true\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			h := newHarness(t, tt.engine, &fakeLines{inputs: tt.inputs})

			require.NoError(t, h.shell.Run())

			assert.Empty(t, h.stderr.String())
			assert.Equal(t, "No previous history.\n"+tt.want+"CTRL-D\n", h.out.String())
		})
	}
}

func TestShellContinuesAfterScriptErrors(t *testing.T) {
	h := newHarness(t, engine.TypeEngineJs, &fakeLines{inputs: []string{
		`println(`,
		`nope()`,
		`println("still here")`,
		`.exit`,
	}})

	require.NoError(t, h.shell.Run())

	assert.Contains(t, h.stderr.String(), "ReferenceError")
	assert.Contains(t, h.out.String(), "still here\n")
	assert.Equal(t, "println(\nnope()\nprintln(\"still here\")\n.exit\n", h.savedHistory(t))
}

func TestShellTerminationTriggers(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "end of input", err: io.EOF, want: "CTRL-D\n"},
		{name: "interrupt", err: liner.ErrPromptAborted, want: "CTRL-C\n"},
		{name: "read failure", err: errors.New("boom"), want: "Error: boom\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, engine.TypeEngineJs, &fakeLines{inputs: []string{`println("hi")`}, err: tt.err})

			require.NoError(t, h.shell.Run())

			assert.Equal(t, "No previous history.\nhi\n"+tt.want, h.out.String())
			assert.Equal(t, "println(\"hi\")\n", h.savedHistory(t))
			assert.Equal(t, 1, h.engine.closed)
		})
	}
}

func TestShellLoadsExistingHistory(t *testing.T) {
	lines := &fakeLines{inputs: []string{".exit"}}
	h := newHarness(t, engine.TypeEngineJs, lines)
	require.NoError(t, os.WriteFile(h.history, []byte("1 + 1\nprintln(2)\n"), 0o644))

	require.NoError(t, h.shell.Run())

	assert.Empty(t, h.out.String())
	assert.Equal(t, []string{"1 + 1", "println(2)", ".exit"}, lines.history)
	assert.Equal(t, "1 + 1\nprintln(2)\n.exit\n", h.savedHistory(t))
}

func TestShellHistorySaveFailure(t *testing.T) {
	h := newHarness(t, engine.TypeEngineJs, &fakeLines{inputs: []string{".exit"}}, func(cfg *Config) {
		cfg.HistoryFile = filepath.Join(t.TempDir(), "missing", "history.txt")
	})

	err := h.shell.Run()

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 1, h.engine.closed)
}

func TestShellInitScript(t *testing.T) {
	script := filepath.Join(t.TempDir(), "init.js")
	require.NoError(t, os.WriteFile(script, []byte(`var greeting = "from init"`), 0o644))

	h := newHarness(t, engine.TypeEngineJs, &fakeLines{inputs: []string{`println(greeting)`, `.exit`}}, func(cfg *Config) {
		cfg.InitScript = script
	})

	require.NoError(t, h.shell.Run())

	assert.Empty(t, h.stderr.String())
	assert.Equal(t, "No previous history.\nfrom init\n", h.out.String())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "awaiting-line", StateAwaitingLine.String())
	assert.Equal(t, "evaluating", StateEvaluating.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "State(9)", State(9).String())
}
