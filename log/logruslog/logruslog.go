// Package logruslog adapts logrus to rendercache.Logger.
package logruslog

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/rendercache"
)

var _ rendercache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every line with component=rendercache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "rendercache")}
}

func (l Logger) Debug(msg string, f rendercache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f rendercache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f rendercache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f rendercache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f rendercache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	return l.E.WithFields(logrus.Fields(f))
}
