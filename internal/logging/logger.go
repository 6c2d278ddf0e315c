// Package logging provides structured, leveled logging for the eegpipe runtime.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config holds logging configuration.
type Config struct {
	Level LogLevel
	// Format is "text" (human-readable console writer) or "json" (one
	// object per line, suitable for log aggregation).
	Format  string
	Output  io.Writer
	NoColor bool
	// Sync is not read by NewLogger and has no effect on the logger.
	Sync bool
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// Logger wraps a zerolog.Logger with the Printf-style and field-context
// helpers the rest of the codebase is written against.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a new logger from the given configuration.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	var w io.Writer = output
	if config.Format != "json" {
		w = zerolog.ConsoleWriter{Out: output, NoColor: config.NoColor, TimeFormat: "15:04:05.000"}
	}

	zl := zerolog.New(w).Level(config.Level.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default (package-level) logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// WithStage returns a derived logger with a stage name field attached.
func (l *Logger) WithStage(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("stage", name).Logger()}
}

// WithSourceID returns a derived logger with a packet source id field attached.
func (l *Logger) WithSourceID(sourceID string) *Logger {
	return &Logger{zl: l.zl.With().Str("source_id", sourceID).Logger()}
}

// WithFrameID returns a derived logger with a frame id field attached.
func (l *Logger) WithFrameID(frameID uint64) *Logger {
	return &Logger{zl: l.zl.With().Uint64("frame_id", frameID).Logger()}
}

// WithError returns a derived logger carrying the given error as a field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

func (l *Logger) Debug(msg string, args ...any) { l.event(l.zl.Debug(), msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.event(l.zl.Info(), msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.event(l.zl.Warn(), msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.event(l.zl.Error(), msg, args...) }

func (l *Logger) event(e *zerolog.Event, msg string, args ...any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}

// Printf-style logging, kept for call sites that prefer a format string.
func (l *Logger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.zl.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.zl.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }

// Printf is kept for drop-in compatibility with call sites written against
// the stdlib log.Logger shape; it logs at Info level.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

// Global convenience functions operating on the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
