package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the process logger is built.
type Options struct {
	Level       string
	Development bool
}

// NewLogger builds a structured logger. Production encoding is the default.
func NewLogger(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"

	if level := strings.TrimSpace(opts.Level); level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, NewOperationError("logging.parse_level", "", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// WithOperation enriches the logger with operation and image identifiers.
func WithOperation(logger *zap.Logger, operation, imageID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if imageID != "" {
		fields = append(fields, zap.String("image_id", imageID))
	}
	return logger.With(fields...)
}
