// Package zerologlog adapts zerolog to rendercache.Logger.
package zerologlog

import (
	"github.com/rs/zerolog"
	"github.com/unkn0wn-root/rendercache"
)

var _ rendercache.Logger = Logger{}

type Logger struct{ L zerolog.Logger }

func New(l zerolog.Logger) Logger {
	return Logger{L: l.With().Str("component", "rendercache").Logger()}
}

func (z Logger) Debug(msg string, f rendercache.Fields) { send(z.L.Debug(), msg, f) }
func (z Logger) Info(msg string, f rendercache.Fields)  { send(z.L.Info(), msg, f) }
func (z Logger) Warn(msg string, f rendercache.Fields)  { send(z.L.Warn(), msg, f) }
func (z Logger) Error(msg string, f rendercache.Fields) { send(z.L.Error(), msg, f) }

// send is a no-op for events disabled by level (nil *zerolog.Event).
func send(e *zerolog.Event, msg string, f rendercache.Fields) {
	if e == nil {
		return
	}
	if len(f) > 0 {
		e = e.Fields(map[string]any(f))
	}
	e.Msg(msg)
}
