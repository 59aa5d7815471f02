package logging

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the CLI logger. Levels follow zap's text forms
// (debug, info, warn, error); debug switches to the development encoder
// so pull traces stay readable on a terminal.
func NewLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	if zapLevel == zapcore.DebugLevel {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build()
}

// WithPullID tags a logger with a fresh correlation id so the stages of
// one pull can be followed across packages.
func WithPullID(logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("pull_id", uuid.New().String()))
}
