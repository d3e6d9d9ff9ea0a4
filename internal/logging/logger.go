package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Level is the minimum severity that gets emitted.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// Config holds logger configuration.
type Config struct {
	Level      Level
	OutputFile string // path to log file (empty = stderr only)
	JSONFormat bool
	AddSource  bool
}

// Logger wraps slog.Logger so the engine packages stay decoupled from
// handler setup.
type Logger struct {
	slog *slog.Logger
	file *os.File
}

// New creates a logger from the given configuration.
func New(config Config) (*Logger, error) {
	logger := &Logger{}

	var writers []io.Writer
	writers = append(writers, os.Stderr)

	if config.OutputFile != "" {
		dir := filepath.Dir(config.OutputFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
		file, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.OutputFile, err)
		}
		logger.file = file
		writers = append(writers, file)
	}

	opts := &slog.HandlerOptions{
		Level:     toSlogLevel(config.Level),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.JSONFormat {
		handler = slog.NewJSONHandler(io.MultiWriter(writers...), opts)
	} else {
		handler = slog.NewTextHandler(io.MultiWriter(writers...), opts)
	}

	logger.slog = slog.New(handler)
	return logger, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DEBUG:
		return slog.LevelDebug
	case INFO:
		return slog.LevelInfo
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a new logger with additional context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), file: l.file}
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// DefaultConfig returns the configuration the CLI uses: human-readable
// in debug mode, JSON with a timestamped file otherwise.
func DefaultConfig(debugMode bool) Config {
	level := INFO
	if debugMode {
		level = DEBUG
	}

	logFile := ""
	if !debugMode {
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		logFile = filepath.Join("logs", fmt.Sprintf("gvault_%s.log", timestamp))
	}

	return Config{
		Level:      level,
		OutputFile: logFile,
		JSONFormat: !debugMode,
		AddSource:  debugMode,
	}
}
