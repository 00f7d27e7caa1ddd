package logging

import (
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported values for the log_format setting.
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatZap  = "zap"
)

// New builds a Logger writing to w in the requested format.
func New(format string, w io.Writer, debug bool) (Logger, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "", FormatJSON:
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, opts))), nil
	case FormatText:
		return NewSlogLogger(slog.New(slog.NewTextHandler(w, opts))), nil
	case FormatZap:
		zl := zap.InfoLevel
		if debug {
			zl = zap.DebugLevel
		}
		enc := zap.NewProductionEncoderConfig()
		enc.TimeKey = "ts"
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zl)
		return NewZapLogger(zap.New(core)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
