package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
}

// FileOptions controls the optional rotated log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a new logger with the specified level
func New(level string) *Logger {
	return newWithWriter(level, os.Stdout)
}

// NewWithFile writes JSON logs to stdout and to a size-rotated file.
// An empty path behaves like New.
func NewWithFile(level string, file FileOptions) *Logger {
	if strings.TrimSpace(file.Path) == "" {
		return New(level)
	}
	if file.MaxSizeMB <= 0 {
		file.MaxSizeMB = 50
	}
	if file.MaxBackups <= 0 {
		file.MaxBackups = 5
	}
	if file.MaxAgeDays <= 0 {
		file.MaxAgeDays = 14
	}
	rotator := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   true,
	}
	return newWithWriter(level, io.MultiWriter(os.Stdout, rotator))
}

// NewWithWriter is used by tests that need to inspect log output.
func NewWithWriter(level string, w io.Writer) *Logger {
	return newWithWriter(level, w)
}

func newWithWriter(level string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	handler := slog.NewJSONHandler(w, opts)
	logger := slog.New(handler)

	return &Logger{Logger: logger}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}
