// Package logging constructs the injected structured logger every other
// package takes at construction time, replacing the singleton printf
// logger the original source used (see SPEC_FULL.md Design Notes).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style zap.Logger: JSON encoding, ISO8601
// timestamps, level filtered at minLevel. Callers own the returned logger
// and should defer Sync() on it.
func New(minLevel zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(minLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// NewDevelopment builds a human-readable, colorized console logger for
// local runs of cmd/zergcityd and cmd/zergcity-client.
func NewDevelopment() (*zap.Logger, error) {
	return zap.NewDevelopment()
}

// Noop returns a logger that discards everything, for tests that don't
// want log noise but still need to satisfy a *zap.Logger constructor
// parameter.
func Noop() *zap.Logger {
	return zap.NewNop()
}
