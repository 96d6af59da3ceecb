// Package logging wires the process-wide zerolog.Logger handed to the app
// container and threaded through every loop, rather than a package-level
// global.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-friendly logger at the given level name
// (trace|debug|info|warn|error). Unknown or empty level defaults to info.
func New(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(console).Level(lvl).With().Timestamp().Logger()
}
