package edgekv

import (
	"context"
	"log/slog"
)

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Provide an adapter around your logging
// stack (see log/slog, log/logrus, log/zap). A nil Logger disables logging.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// debugLogger backs Options.Debug when no Logger is given. It writes through
// slog.Default at every level, debug included.
type debugLogger struct{ l *slog.Logger }

func newDebugLogger() Logger { return debugLogger{l: slog.Default()} }

func (d debugLogger) log(lvl slog.Level, msg string, f Fields) {
	args := make([]any, 0, 2*len(f))
	for k, v := range f {
		args = append(args, k, v)
	}
	// slog.Default drops debug records unless configured; raise them to info.
	if lvl < slog.LevelInfo && !d.l.Enabled(context.Background(), lvl) {
		lvl = slog.LevelInfo
		msg = "[debug] " + msg
	}
	d.l.Log(context.Background(), lvl, msg, args...)
}

func (d debugLogger) Debug(msg string, f Fields) { d.log(slog.LevelDebug, msg, f) }
func (d debugLogger) Info(msg string, f Fields)  { d.log(slog.LevelInfo, msg, f) }
func (d debugLogger) Warn(msg string, f Fields)  { d.log(slog.LevelWarn, msg, f) }
func (d debugLogger) Error(msg string, f Fields) { d.log(slog.LevelError, msg, f) }
