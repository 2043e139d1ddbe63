package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Logger is a slog.Logger whose output passes through credential
// redaction before it reaches the sink.
type Logger struct {
	*slog.Logger
	sanitizer *Sanitizer
}

// Config selects the output format and level threshold for a process
// logger.
type Config struct {
	Level  string
	Format string // auto, text, json
	Output io.Writer
}

// DefaultConfig logs at info to stderr, with the format chosen from the
// sink: pretty on a terminal, JSON otherwise.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "auto", Output: os.Stderr}
}

// New builds a redacting logger for the given configuration.
func New(cfg Config) *Logger {
	sink := cfg.Output
	if sink == nil {
		sink = os.Stderr
	}
	sanitizer := NewSanitizer()
	inner := buildHandler(cfg.Format, sink, parseLevel(cfg.Level))
	return &Logger{
		Logger:    slog.New(NewSanitizingHandler(inner, sanitizer)),
		sanitizer: sanitizer,
	}
}

func buildHandler(format string, sink io.Writer, level slog.Level) slog.Handler {
	switch format {
	case "json":
		return slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level})
	case "text":
		return slog.NewTextHandler(sink, &slog.HandlerOptions{Level: level})
	}
	if f, ok := sink.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return NewPrettyHandler(sink, level)
	}
	return slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level})
}

// NewNop discards everything; for tests that need a logger.
func NewNop() *Logger {
	return &Logger{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		sanitizer: NewSanitizer(),
	}
}

// With returns a child logger carrying extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), sanitizer: l.sanitizer}
}

// WithStage returns a child logger scoped to a pipeline stage.
func (l *Logger) WithStage(stage string) *Logger {
	return l.With("stage", stage)
}

// WithRun returns a child logger scoped to a run.
func (l *Logger) WithRun(runID string) *Logger {
	return l.With("run_id", runID)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
