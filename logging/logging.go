// Package logging sets up the zerolog logger used by the CLI.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options selects the output of New.
type Options struct {
	// Format is "console" (default) or "json".
	Format  string
	Verbose bool
	// Quiet limits output to warnings and errors.
	Quiet bool
}

// New returns a logger writing to w. Console output is colored only when w
// is a terminal.
func New(w io.Writer, opts Options) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case opts.Verbose:
		level = zerolog.DebugLevel
	case opts.Quiet:
		level = zerolog.WarnLevel
	}

	out := w
	if opts.Format != FormatJSON {
		out = ConsoleWriter(w)
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ConsoleWriter returns a human-readable zerolog writer, with color only on
// terminals.
func ConsoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, NoColor: !IsTerminal(w), TimeFormat: time.TimeOnly}
}
