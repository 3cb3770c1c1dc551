// Package journallog provides a thin structured-logging wrapper around
// log/slog: a package-level Logger singleton with printf-style level
// methods.
package journallog

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger wraps a *slog.Logger with printf-style convenience methods.
type Logger struct {
	logger *slog.Logger
}

// Log is the global logger instance.
var Log = &Logger{
	logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})),
}

// SetDebug switches the global logger to debug level, used when
// config.HTTPConfig.Debug is set.
func SetDebug(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	Log = &Logger{
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})),
	}
}

// Infof logs an info level message with formatting.
func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info(sprintf(format, args...))
}

// Warnf logs a warning level message with formatting.
func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn(sprintf(format, args...))
}

// Errorf logs an error level message with formatting.
func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error(sprintf(format, args...))
}

// Debugf logs a debug level message with formatting.
func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug(sprintf(format, args...))
}

// WithCorrelationID returns a logger that tags every line with id, used to
// trace an InternalError back to the request that caused it.
func (l *Logger) WithCorrelationID(id string) *Logger {
	return &Logger{logger: l.logger.With("correlation_id", id)}
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
