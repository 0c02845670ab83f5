package engine

import (
	"io"
	"log/slog"
	"os"
)

// Option configures an engine at construction.
type Option func(*options)

type options struct {
	strict bool
	stderr io.Writer
	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		stderr: os.Stderr,
		logger: slog.Default(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStrict enables the runtime's strict mode where it has one.
// Lua rejects reads of undeclared globals; JavaScript and Go ignore it.
func WithStrict(enabled bool) Option {
	return func(o *options) {
		o.strict = enabled
	}
}

// WithErrorOutput sets where script errors are reported.
func WithErrorOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.stderr = w
		}
	}
}

// WithLogger sets the logger used for binding diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
