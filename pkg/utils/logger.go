package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the service logger. Debug mode uses a console encoder at
// debug level with readable timestamps; otherwise JSON at info level.
func NewLogger(debug bool) (*zap.Logger, error) {
	if !debug {
		return zap.NewProduction()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
