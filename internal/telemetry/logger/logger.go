package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the logging interface passed to every kubedash component.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	// WithContext returns a logger carrying the request and trace IDs
	// found in ctx.
	WithContext(ctx context.Context) Logger
}

// Config selects the level, encoding and sink of a logger.
type Config struct {
	Level   string    // debug, info, warn, error
	Format  string    // json, text (console is an alias)
	Output  io.Writer // os.Stderr when nil
	Backend string    // slog or zap
}

// New builds a logger from cfg. Building a logger also resets the
// process-wide level to cfg.Level.
func New(cfg Config) (Logger, error) {
	SetLevel(cfg.Level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Backend, "zap") {
		return newZap(out, cfg.Format), nil
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactAttr(a)
		},
	}
	var h slog.Handler
	if isText(cfg.Format) {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}
	return &slogLogger{l: slog.New(h), ctx: context.Background()}, nil
}

func isText(format string) bool {
	switch strings.ToLower(format) {
	case "text", "console":
		return true
	}
	return false
}

type slogLogger struct {
	l   *slog.Logger
	ctx context.Context
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.DebugContext(s.ctx, msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.InfoContext(s.ctx, msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.WarnContext(s.ctx, msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.ErrorContext(s.ctx, msg, args...) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...), ctx: s.ctx}
}

func (s *slogLogger) WithContext(ctx context.Context) Logger {
	l := s.l
	if ids := contextIDs(ctx); len(ids) > 0 {
		l = l.With(ids...)
	}
	return &slogLogger{l: l, ctx: ctx}
}

// Nop returns a logger that writes nothing.
func Nop() Logger {
	return &slogLogger{l: slog.New(slog.DiscardHandler), ctx: context.Background()}
}

type boxed struct{ Logger }

var fallback atomic.Pointer[boxed]

func init() {
	l, _ := New(Config{Level: "info"})
	fallback.Store(&boxed{l})
}

// SetDefault replaces the logger returned by Default. A nil l is ignored.
func SetDefault(l Logger) {
	if l != nil {
		fallback.Store(&boxed{l})
	}
}

// Default returns the process-wide logger used by components that were
// not given one explicitly.
func Default() Logger {
	return fallback.Load().Logger
}
