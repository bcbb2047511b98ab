// Package logging provides utilities for structured logging.
package logging

import (
	"log/slog"
)

// SlogAdapter adapts a *slog.Logger to satisfy go.temporal.io/sdk/log.Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a Temporal-compatible logger backed by the given
// *slog.Logger. A nil logger falls back to slog.Default().
func NewSlogAdapter(l *slog.Logger) *SlogAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &SlogAdapter{logger: l}
}

func (s *SlogAdapter) Debug(msg string, keyvals ...interface{}) {
	s.logger.Debug(msg, pairsToArgs(keyvals)...)
}

func (s *SlogAdapter) Info(msg string, keyvals ...interface{}) {
	s.logger.Info(msg, pairsToArgs(keyvals)...)
}

func (s *SlogAdapter) Warn(msg string, keyvals ...interface{}) {
	s.logger.Warn(msg, pairsToArgs(keyvals)...)
}

func (s *SlogAdapter) Error(msg string, keyvals ...interface{}) {
	s.logger.Error(msg, pairsToArgs(keyvals)...)
}

// pairsToArgs converts alternating key-value pairs to slog args. An odd
// trailing value is kept under a sentinel key instead of being dropped.
func pairsToArgs(keyvals []interface{}) []any {
	if len(keyvals) == 0 {
		return nil
	}
	args := make([]any, 0, len(keyvals))
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		args = append(args, slog.Any(key, keyvals[i+1]))
	}
	if len(keyvals)%2 != 0 {
		args = append(args, slog.Any("MISSING_VALUE", keyvals[len(keyvals)-1]))
	}
	return args
}
