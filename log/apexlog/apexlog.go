// Package apexlog adapts github.com/apex/log to rendercache.Logger.
package apexlog

import (
	"github.com/apex/log"
	"github.com/unkn0wn-root/rendercache"
)

var _ rendercache.Logger = Logger{}

type Logger struct{ L log.Interface }

// New wraps l; a nil l uses the apex/log package logger.
func New(l log.Interface) Logger {
	if l == nil {
		l = log.Log
	}
	return Logger{L: l}
}

func (a Logger) Debug(msg string, f rendercache.Fields) { a.with(f).Debug(msg) }
func (a Logger) Info(msg string, f rendercache.Fields)  { a.with(f).Info(msg) }
func (a Logger) Warn(msg string, f rendercache.Fields)  { a.with(f).Warn(msg) }
func (a Logger) Error(msg string, f rendercache.Fields) { a.with(f).Error(msg) }

func (a Logger) with(f rendercache.Fields) log.Interface {
	if len(f) == 0 {
		return a.L
	}
	return a.L.WithFields(log.Fields(f))
}
