// Package log configures structured logging for the farmdeck binaries and
// provides typed helpers for the log fields the app emits.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger and stamps every entry with a component name.
type Logger struct {
	*slog.Logger
	component string
}

// Options controls handler construction.
type Options struct {
	Level     slog.Level
	JSON      bool
	Component string
}

// New builds a logger writing to stdout.
func New(opts Options) *Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	}

	component := opts.Component
	if component == "" {
		component = ComponentApp
	}

	return &Logger{
		Logger:    slog.New(handler),
		component: component,
	}
}

// NewFromEnv reads LOG_LEVEL (debug, info, warn, error) and LOG_FORMAT
// (text, json) and builds a logger accordingly. Unknown values fall back
// to info-level text output.
func NewFromEnv(component string) *Logger {
	opts := Options{Component: component}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	opts.JSON = strings.EqualFold(os.Getenv("LOG_FORMAT"), "json")

	return New(opts)
}

// With returns a logger carrying extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		component: l.component,
	}
}

// WithComponent returns a logger stamped with a different component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(FieldComponent, component),
		component: component,
	}
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs the wrapped slog.Logger as the process default so
// packages logging through slog directly share the same handler.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

// Default wraps the process default slog.Logger with a component name.
func Default(component string) *Logger {
	return &Logger{
		Logger:    slog.Default(),
		component: component,
	}
}
