// Package log provides structured logging utilities for the GOASIC mining daemon.
// It wraps the standard library's slog package with additional convenience methods.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with additional context and convenience methods
type Logger struct {
	*slog.Logger
	service string
	version string
}

// New creates a new logger with the specified configuration
func New(service, version, level, format string) *Logger {
	var handler slog.Handler

	// Parse log level
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	baseLogger := slog.New(handler).With(
		"service", service,
		"version", version,
	)

	return &Logger{
		Logger:  baseLogger,
		service: service,
		version: version,
	}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger:  l.With(fields...),
		service: l.service,
		version: l.version,
	}
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithChain returns a logger with hashboard chain fields
func (l *Logger) WithChain(chainID int) *Logger {
	return l.WithFields("chain_id", chainID)
}

// WithClient returns a logger with upstream client fields
func (l *Logger) WithClient(name, endpoint string) *Logger {
	return l.WithFields("client_name", name, "client_endpoint", endpoint)
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields("error", err.Error())
}

// Mining-specific logging helpers

// LogWorkSent logs an assignment written into a hashboard TX FIFO
func (l *Logger) LogWorkSent(chainID int, workID uint16, midstates int) {
	l.Debug("work sent",
		"chain_id", chainID,
		"work_id", workID,
		"midstates", midstates,
	)
}

// LogSolutionFound logs a solution resolved against outstanding work
func (l *Logger) LogSolutionFound(chainID int, workID uint16, nonce uint32, midstateIdx int) {
	l.Info("solution found",
		"chain_id", chainID,
		"work_id", workID,
		"nonce", nonce,
		"midstate_idx", midstateIdx,
	)
}

// LogStaleSolution logs a solution whose work ID no longer resolves.
// This is a benign race under sustained throughput, not a failure.
func (l *Logger) LogStaleSolution(chainID int, workID uint16, nonce uint32) {
	l.Error("stale solution dropped",
		"chain_id", chainID,
		"work_id", workID,
		"nonce", nonce,
	)
}

// LogClientState logs client lifecycle transitions
func (l *Logger) LogClientState(name, event string, enabled bool) {
	l.Info("client state change",
		"client_name", name,
		"event", event,
		"enabled", enabled,
	)
}

// LogQuotaUpdate logs a scheduler quota recalculation
func (l *Logger) LogQuotaUpdate(clients int, share float64, countersReset bool) {
	l.Info("quotas recalculated",
		"clients", clients,
		"percentage_share", share,
		"counters_reset", countersReset,
	)
}
