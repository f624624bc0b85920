package logger

import (
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The level is process-wide: both backends read it on every call, so
// SetLevel takes effect on loggers that already exist.
var (
	slogLevel = new(slog.LevelVar)
	zapLevel  = zap.NewAtomicLevel()
)

var levels = []struct {
	name string
	slog slog.Level
	zap  zapcore.Level
}{
	{"debug", slog.LevelDebug, zapcore.DebugLevel},
	{"info", slog.LevelInfo, zapcore.InfoLevel},
	{"warn", slog.LevelWarn, zapcore.WarnLevel},
	{"error", slog.LevelError, zapcore.ErrorLevel},
}

// SetLevel changes the minimum level of every logger. Unknown names
// select info; "warning" is accepted for warn.
func SetLevel(name string) {
	name = strings.ToLower(name)
	if name == "warning" {
		name = "warn"
	}
	lv := levels[1]
	for _, l := range levels {
		if l.name == name {
			lv = l
			break
		}
	}
	slogLevel.Set(lv.slog)
	zapLevel.SetLevel(lv.zap)
}

// GetLevel reports the current level name.
func GetLevel() string {
	cur := slogLevel.Level()
	for _, l := range levels {
		if l.slog == cur {
			return l.name
		}
	}
	return "info"
}
