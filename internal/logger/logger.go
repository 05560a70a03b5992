// Package logger provides the structured logger used across the crawler.
package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Interface is the logging surface injected into every component.
type Interface interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Fatal(msg string, fields ...any)
	With(fields ...any) Interface
}

// Config configures a zap-backed logger.
type Config struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Encoding    string `mapstructure:"encoding" yaml:"encoding"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Logger implements Interface on top of zap.
type Logger struct {
	zapLogger *zap.Logger
}

var logLevels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"fatal": zapcore.FatalLevel,
}

// New builds a logger from cfg.
func New(cfg Config) (*Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "console"
	}

	level, ok := logLevels[strings.ToLower(cfg.Level)]
	if !ok {
		return nil, fmt.Errorf("logger: invalid level %q", cfg.Level)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
		}
		encoderConfig.ConsoleSeparator = " | "
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var encoder zapcore.Encoder
	switch cfg.Encoding {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("logger: invalid encoding %q", cfg.Encoding)
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)
	return &Logger{zapLogger: zap.New(core, opts...)}, nil
}

// NewFromZap wraps an existing zap logger, mostly for tests using zaptest/observer.
func NewFromZap(z *zap.Logger) *Logger {
	return &Logger{zapLogger: z}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zapLogger.Sync()
}

func (l *Logger) Debug(msg string, fields ...any) { l.zapLogger.Debug(msg, toZapFields(fields)...) }
func (l *Logger) Info(msg string, fields ...any)  { l.zapLogger.Info(msg, toZapFields(fields)...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.zapLogger.Warn(msg, toZapFields(fields)...) }
func (l *Logger) Error(msg string, fields ...any) { l.zapLogger.Error(msg, toZapFields(fields)...) }
func (l *Logger) Fatal(msg string, fields ...any) { l.zapLogger.Fatal(msg, toZapFields(fields)...) }

// With returns a child logger carrying fields.
func (l *Logger) With(fields ...any) Interface {
	return &Logger{zapLogger: l.zapLogger.With(toZapFields(fields)...)}
}

// toZapFields converts alternating key/value pairs (or ready zap.Fields)
// into zap fields. A dangling key is kept with a "<missing>" value.
func toZapFields(fields []any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	out := make([]zap.Field, 0, len(fields)/2+1)
	for i := 0; i < len(fields); i++ {
		switch f := fields[i].(type) {
		case zap.Field:
			out = append(out, f)
		case string:
			if i+1 >= len(fields) {
				out = append(out, zap.String(f, "<missing>"))
				continue
			}
			if err, ok := fields[i+1].(error); ok {
				out = append(out, zap.NamedError(f, err))
			} else {
				out = append(out, zap.Any(f, fields[i+1]))
			}
			i++
		default:
			out = append(out, zap.Any(fmt.Sprintf("field_%d", i), f))
		}
	}
	return out
}
