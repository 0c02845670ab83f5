// Package shell runs an interactive read-eval-print loop over an engine.
package shell

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/peterh/liner"

	engine "github.com/icyseptember2237/enginesh"
)

// LineReader reads input lines and keeps their history. *liner.State
// satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	ReadHistory(r io.Reader) (int, error)
	WriteHistory(w io.Writer) (int, error)
}

type State int

const (
	StateInit State = iota
	StateAwaitingLine
	StateEvaluating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAwaitingLine:
		return "awaiting-line"
	case StateEvaluating:
		return "evaluating"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Shell struct {
	engine engine.Engine
	lines  LineReader
	out    io.Writer
	cfg    Config
	logger *slog.Logger

	state   State
	pending string
}

type Option func(*Shell)

func WithOutput(w io.Writer) Option {
	return func(s *Shell) {
		s.out = w
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Shell) {
		s.logger = l
	}
}

// New takes ownership of e, registers the host natives into it and
// returns a shell ready to Run.
func New(e engine.Engine, lines LineReader, cfg Config, opts ...Option) *Shell {
	s := &Shell{
		engine: e,
		lines:  lines,
		out:    os.Stdout,
		cfg:    cfg,
		logger: slog.Default(),
		state:  StateInit,
	}
	for _, opt := range opts {
		opt(s)
	}
	RegisterNatives(e, s.out)
	return s
}

func (s *Shell) State() State {
	return s.state
}

// Run drives the loop until .exit, interrupt or end of input, then saves
// history and releases the engine. Only a failed history save is
// returned.
func (s *Shell) Run() error {
	for s.state != StateTerminated {
		next := s.step()
		s.logger.Debug("state transition", "from", s.state, "to", next)
		s.state = next
	}
	return s.terminate()
}

func (s *Shell) step() State {
	switch s.state {
	case StateInit:
		s.loadHistory()
		if s.cfg.InitScript != "" {
			s.engine.EvalFile(s.cfg.InitScript)
		}
		return StateAwaitingLine

	case StateAwaitingLine:
		line, err := s.lines.Prompt(Prompt)
		switch {
		case err == nil:
		case errors.Is(err, liner.ErrPromptAborted):
			fmt.Fprintln(s.out, "CTRL-C")
			return StateTerminated
		case errors.Is(err, io.EOF):
			fmt.Fprintln(s.out, "CTRL-D")
			return StateTerminated
		default:
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return StateTerminated
		}
		s.lines.AppendHistory(line)
		if line == ExitCommand {
			return StateTerminated
		}
		s.pending = line
		return StateEvaluating

	case StateEvaluating:
		s.engine.Eval(s.pending)
		s.pending = ""
		return StateAwaitingLine
	}
	return StateTerminated
}

func (s *Shell) loadHistory() {
	f, err := os.Open(s.cfg.HistoryFile)
	if err != nil {
		fmt.Fprintln(s.out, "No previous history.")
		s.logger.Debug("history not loaded", "path", s.cfg.HistoryFile, "error", err)
		return
	}
	defer f.Close()
	n, err := s.lines.ReadHistory(f)
	if err != nil {
		s.logger.Warn("history partially loaded", "path", s.cfg.HistoryFile, "entries", n, "error", err)
		return
	}
	s.logger.Debug("history loaded", "path", s.cfg.HistoryFile, "entries", n)
}

func (s *Shell) terminate() error {
	defer s.engine.Close()
	return s.saveHistory()
}

func (s *Shell) saveHistory() error {
	f, err := os.Create(s.cfg.HistoryFile)
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	n, err := s.lines.WriteHistory(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("save history %s: %w", s.cfg.HistoryFile, err)
	}
	s.logger.Debug("history saved", "path", s.cfg.HistoryFile, "entries", n)
	return nil
}
