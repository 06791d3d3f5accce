// Package vmlog centralizes the core's structured logging: a single
// zerolog logger, configured once at startup, that every other package
// calls through rather than constructing its own.
package vmlog

import (
	"os"

	"github.com/rs/zerolog"
)

// logger is the process-wide logger. Defaults to info level, human-readable
// console output, so a bare `go run` or `go test` still produces readable
// diagnostics before Init is ever called.
var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.InfoLevel)

// Init reconfigures the logger per the resolved configuration: level is a
// zerolog level name ("debug", "info", "warn", ...); json selects structured
// JSON output over the human-readable console writer (for log aggregation
// in non-interactive runs).
func Init(level string, json bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}

	if json {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(lvl)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(lvl)
	}
	return nil
}

func Debug() *zerolog.Event { return logger.Debug() }
func Info() *zerolog.Event  { return logger.Info() }
func Warn() *zerolog.Event  { return logger.Warn() }
func Error() *zerolog.Event { return logger.Error() }
