package shell

import (
	"fmt"
	"log/slog"
	"strconv"

	engine "github.com/icyseptember2237/enginesh"
)

const (
	EnvEngine   = "ENGINESH_ENGINE"
	EnvHistory  = "ENGINESH_HISTORY"
	EnvStrict   = "ENGINESH_STRICT"
	EnvInit     = "ENGINESH_INIT"
	EnvLogLevel = "ENGINESH_LOG_LEVEL"

	DefaultHistoryFile = "history.txt"
	Prompt             = ">> "
	ExitCommand        = ".exit"
)

// Config is the shell configuration. The binary takes no flags; every
// setting comes from the environment.
type Config struct {
	Engine      string
	HistoryFile string
	Strict      bool
	InitScript  string
	LogLevel    slog.Level
}

func DefaultConfig() Config {
	return Config{
		Engine:      engine.TypeEngineJs,
		HistoryFile: DefaultHistoryFile,
		Strict:      true,
		LogLevel:    slog.LevelWarn,
	}
}

// ConfigFromEnv builds a Config from getenv, typically os.Getenv. Unset
// variables keep their defaults.
func ConfigFromEnv(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	if v := getenv(EnvEngine); v != "" {
		switch v {
		case engine.TypeEngineJs, engine.TypeEngineLua, engine.TypeEngineGo:
			cfg.Engine = v
		default:
			return cfg, fmt.Errorf("%s: %w: %q", EnvEngine, engine.ErrUnknownEngine, v)
		}
	}
	if v := getenv(EnvHistory); v != "" {
		cfg.HistoryFile = v
	}
	if v := getenv(EnvStrict); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvStrict, err)
		}
		cfg.Strict = strict
	}
	cfg.InitScript = getenv(EnvInit)
	if v := getenv(EnvLogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}
	return cfg, nil
}
