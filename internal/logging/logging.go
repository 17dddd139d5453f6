// Package logging constructs the process-wide structured logger. Workers
// receive their logger explicitly at construction; the package-level Log
// exists only for early-boot messages emitted before a configured logger is
// available.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is a convenience logger for use before New() has been called.
var Log = zerolog.New(os.Stdout).With().Timestamp().Logger()

// New builds the process logger at the given level, writing to stdout and,
// best-effort, to a local log file.
func New(serviceName, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var writer io.Writer = os.Stdout
	if f, err := os.OpenFile("aggregator.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		writer = io.MultiWriter(os.Stdout, f)
	}

	logger := zerolog.New(writer).With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}
