// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig mirrors config.LoggingConfig plus the console destination.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days

	// Out overrides the console destination (stderr when nil).
	Out io.Writer
}

// NewLoggerWithConfig builds a logger writing human-readable lines to the
// console and, when enabled, JSON lines to a rotated file.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(out),
		})
	}
	if cfg.File && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}
	if len(writers) == 0 {
		writers = append(writers, out)
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithUser adds a user ID to the logger context.
func WithUser(logger zerolog.Logger, userID string) zerolog.Logger {
	return logger.With().Str("user", userID).Logger()
}

// WithComponent adds a component name to the logger context.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// LogTrade logs an executed trade.
func LogTrade(logger zerolog.Logger, txnID, symbol, side string, qty, price decimal.Decimal, copyTrade bool) {
	logger.Info().
		Str("event", "trade").
		Str("txn_id", txnID).
		Str("symbol", symbol).
		Str("side", side).
		Stringer("quantity", qty).
		Stringer("price", price).
		Bool("copy", copyTrade).
		Msg("Trade executed")
}

// LogRoute logs the outcome of routing one signal for one user.
func LogRoute(logger zerolog.Logger, expertID, symbol, status, reason string, err error) {
	level := zerolog.DebugLevel
	if reason != "" {
		level = zerolog.InfoLevel
	}
	event := logger.WithLevel(level).
		Str("event", "route").
		Str("expert", expertID).
		Str("symbol", symbol).
		Str("status", status)
	if reason != "" {
		event = event.Str("reason", reason)
	}
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("Signal routed")
}

// LogRequest logs a served HTTP request. Server errors log at error level.
func LogRequest(logger zerolog.Logger, method, path string, status int, duration time.Duration, err error) {
	level := zerolog.DebugLevel
	switch {
	case status >= 500:
		level = zerolog.ErrorLevel
	case status >= 400:
		level = zerolog.InfoLevel
	}
	event := logger.WithLevel(level).
		Str("event", "http_request").
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration", duration)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("Request served")
}
