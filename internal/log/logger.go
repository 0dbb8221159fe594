// Package log is the process-wide structured logger used by gqlc.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Verbosity levels, selected by repeating -v on the command line.
const (
	LevelQuiet = iota // warnings and errors only
	LevelInfo         // -v: request summaries, cache hits
	LevelDebug        // -vv: interceptor stages, store operations, swallowed errors
	LevelTrace        // -vvv: payload sizes, websocket frames
)

const slogLevelTrace = slog.Level(-8)

var (
	mu        sync.RWMutex
	verbosity = LevelQuiet
	logger    = newLogger(os.Stderr, LevelQuiet)
)

func newLogger(w io.Writer, level int) *slog.Logger {
	var slogLevel slog.Level
	switch {
	case level >= LevelTrace:
		slogLevel = slogLevelTrace
	case level >= LevelDebug:
		slogLevel = slog.LevelDebug
	case level >= LevelInfo:
		slogLevel = slog.LevelInfo
	default:
		slogLevel = slog.LevelWarn
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel}))
}

// Initialize replaces the global logger, writing to w at the given verbosity.
func Initialize(level int, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	verbosity = level
	logger = newLogger(w, level)
}

// Discard silences all output. Tests that exercise noisy paths call it.
func Discard() {
	Initialize(LevelQuiet, io.Discard)
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Enabled reports whether messages at level would be written.
func Enabled(level int) bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbosity >= level
}

// Verbosity returns the current verbosity level.
func Verbosity() int {
	mu.RLock()
	defer mu.RUnlock()
	return verbosity
}

// With returns a child logger carrying the given attributes, for components
// that log several related lines (one subscription, one watcher).
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Trace logs below debug; only visible at -vvv.
func Trace(msg string, args ...any) {
	current().Log(context.Background(), slogLevelTrace, msg, args...)
}

func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	current().Error(msg, args...)
}
