// internal/utils/logger.go

package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the interface for logging throughout the application.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})
	Info(msg string)
	Infof(format string, args ...interface{})
	Warn(msg string)
	Warnf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// LoggerConfig controls where log lines go and how they look.
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	Output io.Writer

	// File enables a rotating log file next to Output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// zerologLogger adapts zerolog to the Logger interface.
type zerologLogger struct {
	zl zerolog.Logger
}

// NewLogger builds a logger from cfg. Output defaults to stderr.
func NewLogger(cfg LoggerConfig) (Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}

	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 10),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, rotating)
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}, nil
}

// NewDefaultLogger returns an info-level console logger on stderr.
func NewDefaultLogger() Logger {
	return &zerologLogger{
		zl: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
			With().Timestamp().Logger(),
	}
}

// NewNopLogger discards everything; used by tests and library callers.
func NewNopLogger() Logger {
	return &zerologLogger{zl: zerolog.Nop()}
}

func (l *zerologLogger) Debug(msg string) { l.zl.Debug().Msg(msg) }

func (l *zerologLogger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *zerologLogger) Info(msg string) { l.zl.Info().Msg(msg) }

func (l *zerologLogger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

func (l *zerologLogger) Warn(msg string) { l.zl.Warn().Msg(msg) }

func (l *zerologLogger) Warnf(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *zerologLogger) Error(msg string) { l.zl.Error().Msg(msg) }

func (l *zerologLogger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

func (l *zerologLogger) WithField(key string, value interface{}) Logger {
	return &zerologLogger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	return &zerologLogger{zl: l.zl.With().Fields(fields).Logger()}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
