// Package console provides the leveled diagnostic logger used across
// georoute. A Logger is created explicitly and passed to the components that
// need it; there is no process-wide logger state.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// VerbosityLevel selects which messages are emitted. Messages at or below
// the configured level are shown.
type VerbosityLevel int

const (
	VerbosityOff VerbosityLevel = iota
	VerbosityFatal
	VerbosityError
	VerbosityWarning
	VerbosityInfo
	VerbosityDebug
)

func (v VerbosityLevel) String() string {
	switch v {
	case VerbosityOff:
		return "off"
	case VerbosityFatal:
		return "fatal"
	case VerbosityError:
		return "error"
	case VerbosityWarning:
		return "warning"
	case VerbosityInfo:
		return "info"
	case VerbosityDebug:
		return "debug"
	default:
		return fmt.Sprintf("VerbosityLevel(%d)", int(v))
	}
}

// ParseVerbosity converts a level name to a VerbosityLevel.
func ParseVerbosity(s string) (VerbosityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return VerbosityOff, nil
	case "fatal":
		return VerbosityFatal, nil
	case "error":
		return VerbosityError, nil
	case "warning", "warn":
		return VerbosityWarning, nil
	case "info", "":
		return VerbosityInfo, nil
	case "debug":
		return VerbosityDebug, nil
	}
	return VerbosityOff, fmt.Errorf("console: invalid verbosity level %q", s)
}

// LevelFatal sits above slog.LevelError so that fatal records sort last.
const LevelFatal = slog.Level(12)

// slogLevel maps a verbosity threshold to the minimum slog level shown.
func (v VerbosityLevel) slogLevel() slog.Level {
	switch v {
	case VerbosityFatal:
		return LevelFatal
	case VerbosityError:
		return slog.LevelError
	case VerbosityWarning:
		return slog.LevelWarn
	case VerbosityInfo:
		return slog.LevelInfo
	case VerbosityDebug:
		return slog.LevelDebug
	default:
		return LevelFatal + 1
	}
}

// Logger is a leveled logger with printf-style helpers.
type Logger struct {
	verbosity VerbosityLevel
	log       *slog.Logger
	exit      func(code int)
}

// Option configures a Logger.
type Option func(*Logger)

// WithExit replaces the function called by Fatalf. Tests use it to observe
// fatal messages without terminating the process.
func WithExit(exit func(code int)) Option {
	return func(l *Logger) { l.exit = exit }
}

// WithHandler routes records through h instead of the default colored
// console handler.
func WithHandler(h slog.Handler) Option {
	return func(l *Logger) { l.log = slog.New(h) }
}

// New returns a Logger writing to w at the given verbosity.
func New(w io.Writer, verbosity VerbosityLevel, opts ...Option) *Logger {
	l := &Logger{
		verbosity: verbosity,
		exit:      os.Exit,
	}
	l.log = slog.New(newHandler(w, verbosity.slogLevel()))
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return New(io.Discard, VerbosityOff)
}

// Verbosity returns the configured threshold.
func (l *Logger) Verbosity() VerbosityLevel {
	if l == nil {
		return VerbosityOff
	}
	return l.verbosity
}

// Enabled reports whether messages at level v would be emitted.
func (l *Logger) Enabled(v VerbosityLevel) bool {
	return l != nil && v != VerbosityOff && v <= l.verbosity
}

// Slog exposes the underlying structured logger.
func (l *Logger) Slog() *slog.Logger {
	if l == nil {
		return Nop().log
	}
	return l.log
}

func (l *Logger) logf(v VerbosityLevel, level slog.Level, format string, args ...any) {
	if !l.Enabled(v) {
		return
	}
	l.log.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

// Fatalf logs at fatal level and terminates through the exit function.
// Algorithms must never call it; it belongs to process entry points.
func (l *Logger) Fatalf(format string, args ...any) {
	if l == nil {
		return
	}
	if l.Enabled(VerbosityFatal) {
		l.logf(VerbosityFatal, LevelFatal, format, args...)
		l.exit(1)
	}
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...any) {
	l.logf(VerbosityError, slog.LevelError, format, args...)
}

// Warningf logs at warning level.
func (l *Logger) Warningf(format string, args ...any) {
	l.logf(VerbosityWarning, slog.LevelWarn, format, args...)
}

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...any) {
	l.logf(VerbosityInfo, slog.LevelInfo, format, args...)
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...any) {
	l.logf(VerbosityDebug, slog.LevelDebug, format, args...)
}
