// Package logging holds the structured logger shared by the driver, the
// simulated coprocessor and the command line tool.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

const (
	ComponentSDIO     Component = "sdio"
	ComponentHost     Component = "host"
	ComponentTransfer Component = "transfer"
	ComponentIOS      Component = "ios"
	ComponentSim      Component = "sim"
	ComponentCLI      Component = "cli"
)

// Format specifies the output format for logging.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var (
	defaultLogger *slog.Logger
	level         = new(slog.LevelVar)
	mu            sync.RWMutex
)

func init() {
	level.Set(slog.LevelWarn)
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Default returns the process-wide logger.
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// For returns the default logger tagged with a component.
func For(c Component) *slog.Logger {
	return Default().With("component", string(c))
}

// SetLevel sets the minimum level of the default logger.
func SetLevel(l slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(l)
}

// Level returns the current minimum level.
func Level() slog.Level {
	mu.RLock()
	defer mu.RUnlock()
	return level.Level()
}

// SetLogger replaces the default logger.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// SetOutput rebuilds the default logger to write to w in the given format,
// keeping the current level.
func SetOutput(w io.Writer, f Format) {
	SetLogger(New(w, f))
}

// New creates a logger sharing the package level.
func New(w io.Writer, f Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if f == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel accepts debug, info, warn (or warning) and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// ParseFormat accepts text and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("unknown log format %q", s)
}

// Debug logs a debug message with the given component.
func Debug(c Component, msg string, args ...any) {
	Default().Debug(msg, append([]any{"component", string(c)}, args...)...)
}

// Info logs an info message with the given component.
func Info(c Component, msg string, args ...any) {
	Default().Info(msg, append([]any{"component", string(c)}, args...)...)
}

// Warn logs a warning with the given component.
func Warn(c Component, msg string, args ...any) {
	Default().Warn(msg, append([]any{"component", string(c)}, args...)...)
}

// Error logs an error with the given component.
func Error(c Component, msg string, args ...any) {
	Default().Error(msg, append([]any{"component", string(c)}, args...)...)
}
