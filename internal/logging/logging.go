// Package logging configures the zerolog logger shared across the service.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var base = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init sets the global level and output format. Level accepts the usual
// zerolog names (debug, info, warn, error); unknown values fall back to info.
func Init(level string, pretty bool) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	if pretty {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		base = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// Component returns a logger tagged with the owning component name.
func Component(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
