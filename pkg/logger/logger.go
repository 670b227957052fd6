// Package logger builds the root zerolog instance for the hydra daemon.
// Subsystems derive their own loggers from it with a "component" field.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the daemon's log level and output format.
type Config struct {
	Level  string // debug, info, warn or error; anything else falls back to info
	Pretty bool   // human-readable console lines instead of JSON
}

// New builds the root logger. The parsed level is also installed as the
// global zerolog level so loggers derived later inherit it.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}
