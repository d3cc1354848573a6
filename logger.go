package rendercache

// Fields carries structured context for a log line.
type Fields map[string]any

// Logger is the leveled logger the store and renderer write to.
// Adapters for zap, logrus, slog, zerolog and apex/log live under log/.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards everything. Used when Options.Logger is nil.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
