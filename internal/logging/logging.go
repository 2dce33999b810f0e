// Package logging configures the global zerolog logger. The TUI owns the
// terminal, so log output goes to a rotating file or nowhere.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	EnvLogLevel = "BITCOIN_TUI_LOG_LEVEL"

	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 14
)

// Options selects where and how much to log.
type Options struct {
	Debug bool
	File  string
}

// Setup replaces log.Logger and returns a closer for the file sink.
// Without Debug and without a level override, logging is disabled.
func Setup(opts Options) (io.Closer, error) {
	level := zerolog.Disabled
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}

	if level == zerolog.Disabled || opts.File == "" {
		log.Logger = zerolog.Nop()
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, err
	}

	sink := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}

	log.Logger = New(sink, level)
	return sink, nil
}

// New builds a timestamped logger tagged with the application name.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).Level(level).With().Timestamp().Str("app", "bitcoin-tui").Logger()
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.NoLevel, false
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
