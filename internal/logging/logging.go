// Package logging builds the zerolog.Logger used across the daemon,
// switching between a human-readable console writer and structured JSON
// output depending on Options.Pretty.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls how New builds a Logger.
type Options struct {
	// Level is one of "trace", "debug", "info", "warn", "error".
	Level string
	// Pretty selects the human-readable console writer instead of JSON.
	Pretty bool
}

// New builds a zerolog.Logger writing to stderr, tagged with a
// "component" field so log lines can be attributed to the package that
// emitted them.
func New(opts Options, component string) zerolog.Logger {
	level := parseLevel(opts.Level)

	var w io.Writer = os.Stderr
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
