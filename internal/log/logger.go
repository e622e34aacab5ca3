// Package log is a thin structured-logging layer over slog that knows
// how to unpack coded errors into log attributes.
package log

import (
	"log/slog"
	"sync"

	"github.com/avaricia/agentflow/internal/errors"
)

// Logger wraps an slog.Logger configured from a Config.
type Logger struct {
	slog *slog.Logger
}

// New builds a logger from the configuration.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{
		Level:     config.Level.slogLevel(),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == FormatText {
		handler = slog.NewTextHandler(config.Output.Writer(), opts)
	} else {
		handler = slog.NewJSONHandler(config.Output.Writer(), opts)
	}
	return &Logger{slog: slog.New(handler)}
}

// Default builds a logger with the default configuration.
func Default() *Logger {
	return New(DefaultConfig())
}

// With returns a logger that adds the attributes to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// WithError attaches the error to the logger. Coded errors contribute
// their code, suggestions, and cause as separate attributes.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	afErr, ok := err.(*errors.AgentFlowError)
	if !ok {
		return l.With("error", err.Error())
	}

	args := []any{
		"error", afErr.Message,
		"error_code", string(afErr.Code),
	}
	if len(afErr.Suggestions) > 0 {
		args = append(args, "suggestions", afErr.Suggestions)
	}
	if afErr.Cause != nil {
		args = append(args, "cause", afErr.Cause.Error())
	}
	return l.With(args...)
}

// LogError records a failure at error level with the coded details
// unpacked, for callers that have nothing to add beyond the error.
func (l *Logger) LogError(err error) {
	if err == nil {
		return
	}
	l.WithError(err).Error("operation failed")
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

var (
	defaultLogger *Logger
	loggerMu      sync.RWMutex
)

// SetDefaultLogger installs the process-wide default logger.
func SetDefaultLogger(logger *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
}

// DefaultLogger returns the process-wide default, building one lazily
// when nothing was installed.
func DefaultLogger() *Logger {
	loggerMu.RLock()
	if defaultLogger != nil {
		defer loggerMu.RUnlock()
		return defaultLogger
	}
	loggerMu.RUnlock()

	logger := Default()
	SetDefaultLogger(logger)
	return logger
}
