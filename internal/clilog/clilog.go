// Package clilog configures the process-wide zerolog logger and a small
// TTY-aware progress writer for cmd/engined: zerolog.ConsoleWriter for
// interactive terminals, golang.org/x/term TTY detection, and a log mode
// flag of auto|plain|json.
package clilog

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Mode selects how progress/log output is rendered.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModePlain Mode = "plain"
	ModeJSON  Mode = "json"
)

// Init configures zerolog's global logger for mode, writing to out.
// ModeAuto renders a human console writer when out is a terminal and
// falls back to structured JSON otherwise.
func Init(mode Mode, out *os.File) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	resolved := resolveMode(mode, term.IsTerminal(int(out.Fd())))

	var w io.Writer = out
	if resolved == ModePlain {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// resolveMode turns ModeAuto into ModePlain or ModeJSON based on
// whether the target is a terminal; other modes pass through unchanged.
func resolveMode(mode Mode, isTTY bool) Mode {
	if mode != ModeAuto {
		return mode
	}
	if isTTY {
		return ModePlain
	}
	return ModeJSON
}

// Progress prints a single-line, overwritable progress indicator when
// attached to a terminal, or a structured log line otherwise — used by
// the replay runner to report record counts without flooding
// non-interactive output.
type Progress struct {
	out      *os.File
	isTTY    bool
	lastLine string
}

// NewProgress constructs a Progress writer targeting out.
func NewProgress(out *os.File) *Progress {
	return &Progress{out: out, isTTY: term.IsTerminal(int(out.Fd()))}
}

// Update reports the current step, overwriting the previous line on a
// TTY or appending a new line otherwise.
func (p *Progress) Update(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if p.isTTY {
		fmt.Fprintf(p.out, "\r\033[K%s", line)
	} else {
		fmt.Fprintln(p.out, line)
	}
	p.lastLine = line
}

// Done finalizes the progress line, emitting a trailing newline on a TTY.
func (p *Progress) Done() {
	if p.isTTY {
		fmt.Fprintln(p.out)
	}
}
