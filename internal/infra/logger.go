package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs the process logger. Development builds get a human
// readable console writer and debug level; everything else logs JSON at info.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(appEnv, os.Stdout)
}

func newLogger(appEnv string, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}

	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("env", appEnv).
		Logger()
}

// Logger aliases zerolog.Logger for packages that only pass the logger around.
type Logger = zerolog.Logger
