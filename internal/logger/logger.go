// Package logger provides a context-aware structured logger backed by zap.
package logger

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the minimum severity a Logger writes.
type Level int8

// Supported levels.
const (
	LevelDebug = Level(zapcore.DebugLevel)
	LevelInfo  = Level(zapcore.InfoLevel)
	LevelWarn  = Level(zapcore.WarnLevel)
	LevelError = Level(zapcore.ErrorLevel)
)

// ParseLevel maps a config string to a Level, defaulting to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// LoggerInterface is the logging contract every component depends on.
// Args are alternating key/value pairs.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// The c variants skip additional stack frames when reporting the caller.
	Debugc(ctx context.Context, caller int, msg string, args ...any)
	Infoc(ctx context.Context, caller int, msg string, args ...any)
	Warnc(ctx context.Context, caller int, msg string, args ...any)
	Errorc(ctx context.Context, caller int, msg string, args ...any)
}

// TraceIDFn extracts a trace id from a context. Empty means none.
type TraceIDFn func(ctx context.Context) string

// Logger implements LoggerInterface.
type Logger struct {
	zl        *zap.Logger
	traceIDFn TraceIDFn
}

var _ LoggerInterface = (*Logger)(nil)

// New builds a JSON logger writing to w. A nil traceIDFn falls back to
// reading the OTEL span context.
func New(w io.Writer, minLevel Level, serviceName string, traceIDFn TraceIDFn) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(w),
		zapcore.Level(minLevel),
	)

	if traceIDFn == nil {
		traceIDFn = SpanTraceID
	}

	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).
		With(zap.String("service", serviceName))

	return &Logger{zl: zl, traceIDFn: traceIDFn}
}

// SpanTraceID returns the trace id of the active OTEL span, if any.
func SpanTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.DebugLevel, 0, msg, args)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.InfoLevel, 0, msg, args)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.WarnLevel, 0, msg, args)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.ErrorLevel, 0, msg, args)
}

func (l *Logger) Debugc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, zapcore.DebugLevel, caller, msg, args)
}

func (l *Logger) Infoc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, zapcore.InfoLevel, caller, msg, args)
}

func (l *Logger) Warnc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, zapcore.WarnLevel, caller, msg, args)
}

func (l *Logger) Errorc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, zapcore.ErrorLevel, caller, msg, args)
}

func (l *Logger) write(ctx context.Context, level zapcore.Level, skip int, msg string, args []any) {
	zl := l.zl
	if skip > 0 {
		zl = zl.WithOptions(zap.AddCallerSkip(skip))
	}

	ce := zl.Check(level, msg)
	if ce == nil {
		return
	}

	fields := toFields(args)
	if ctx != nil {
		if id := l.traceIDFn(ctx); id != "" {
			fields = append(fields, zap.String("trace_id", id))
		}
	}

	ce.Write(fields...)
}

// toFields converts key/value pairs into zap fields. A trailing key with
// no value is reported under "!BADKEY".
func toFields(args []any) []zap.Field {
	fields := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields = append(fields, zap.Any("!BADKEY", args[i]))
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}
