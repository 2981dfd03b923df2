package cmd

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
)

// newLogger builds the process wide structured logger. Debug enables
// verbose levels and human friendly console output.
func newLogger(debug bool) logr.Logger {
	var out io.Writer = os.Stderr
	level := zerolog.InfoLevel
	if debug {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
		level = zerolog.TraceLevel
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return zerologr.New(&zl)
}
