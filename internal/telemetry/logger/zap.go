package logger

import (
	"context"
	"io"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func newZap(out io.Writer, format string) Logger {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.MessageKey = "msg"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder

	enc := zapcore.NewJSONEncoder(ec)
	if isText(format) {
		enc = zapcore.NewConsoleEncoder(ec)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(out), zapLevel)
	return &zapLogger{sugar: zap.New(core).Sugar()}
}

func (l *zapLogger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, redactArgs(args)...)
}

func (l *zapLogger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, redactArgs(args)...)
}

func (l *zapLogger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, redactArgs(args)...)
}

func (l *zapLogger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, redactArgs(args)...)
}

func (l *zapLogger) With(args ...any) Logger {
	return &zapLogger{sugar: l.sugar.With(redactArgs(args)...)}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	if ids := contextIDs(ctx); len(ids) > 0 {
		return &zapLogger{sugar: l.sugar.With(ids...)}
	}
	return l
}

// redactArgs applies the slog redaction rules to alternating key/value
// arguments so the zap backend masks the same attributes.
func redactArgs(args []any) []any {
	if len(args) == 0 {
		return args
	}
	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case slog.Attr:
			a := redactAttr(v)
			out = append(out, a.Key, a.Value.Any())
		case string:
			if i+1 >= len(args) {
				out = append(out, v)
				continue
			}
			a := redactAttr(slog.Any(v, args[i+1]))
			out = append(out, a.Key, a.Value.Any())
			i++
		default:
			out = append(out, v)
		}
	}
	return out
}
