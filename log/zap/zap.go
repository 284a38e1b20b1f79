// Package zap adapts a zap logger to edgekv.Logger.
package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/edgekv"
)

var _ edgekv.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l.Named("edgekv")} }

func (z ZapLogger) Debug(msg string, f edgekv.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f edgekv.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f edgekv.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f edgekv.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f edgekv.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
