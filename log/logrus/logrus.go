// Package logrus adapts a logrus entry to edgekv.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/edgekv"
)

var _ edgekv.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: logrus.NewEntry(l).WithField("component", "edgekv")}
}

func (l LogrusLogger) Debug(msg string, f edgekv.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f edgekv.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f edgekv.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f edgekv.Fields) { l.with(f).Error(msg) }

// with moves an "err" field to logrus' error key.
func (l LogrusLogger) with(f edgekv.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			fields[logrus.ErrorKey] = err
			continue
		}
		fields[k] = v
	}
	return l.E.WithFields(fields)
}
