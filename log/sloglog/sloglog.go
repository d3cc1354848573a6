package sloglog

import (
	"context"
	"log/slog"

	"github.com/unkn0wn-root/rendercache"
)

var _ rendercache.Logger = Logger{}

type Logger struct{ L *slog.Logger }

func (s Logger) Debug(msg string, f rendercache.Fields) { s.log(slog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f rendercache.Fields)  { s.log(slog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f rendercache.Fields)  { s.log(slog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f rendercache.Fields) { s.log(slog.LevelError, msg, f) }

func (s Logger) log(level slog.Level, msg string, f rendercache.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, level) {
		return
	}
	s.L.LogAttrs(ctx, level, msg, attrs(f)...)
}

func attrs(f rendercache.Fields) []slog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]slog.Attr, 0, len(f))
	for k, v := range f {
		out = append(out, slog.Any(k, v))
	}
	return out
}
