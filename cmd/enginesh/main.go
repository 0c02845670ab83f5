// enginesh is an interactive shell over an embedded scripting engine.
//
// It takes no flags. The engine (js, lua or go), history file, strict mode,
// an optional init script and the log level are read from ENGINESH_*
// environment variables. Type .exit, Ctrl-C or Ctrl-D to leave.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/peterh/liner"

	engine "github.com/icyseptember2237/enginesh"
	"github.com/icyseptember2237/enginesh/shell"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := shell.ConfigFromEnv(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	e, err := engine.New(cfg.Engine,
		engine.WithStrict(cfg.Strict),
		engine.WithErrorOutput(os.Stderr),
		engine.WithLogger(logger),
	)
	if err != nil {
		logger.Error("engine not created", "engine", cfg.Engine, "error", err)
		return 1
	}

	ln := liner.NewLiner()
	ln.SetCtrlCAborts(true)

	err = shell.New(e, ln, cfg, shell.WithLogger(logger)).Run()
	ln.Close()
	if err != nil {
		logger.Error("shell terminated", "error", err)
		return 1
	}
	return 0
}
