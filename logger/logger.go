package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}).With().Timestamp().Logger()

// Init sets the global level ("debug", "info", ...). Unknown levels mean info.
func Init(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// SetOutput redirects every logger created afterwards.
func SetOutput(w io.Writer) {
	base = zerolog.New(w).With().Timestamp().Logger()
}

// With returns a logger tagged with a component name.
func With(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// Nop discards everything, handy in tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
