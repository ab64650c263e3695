// Package term provides user-facing terminal output for the openjd CLI.
// This is distinct from operational logging (see internal/olog) and from
// child-process output (see internal/actionlog).
//
// Output functions:
//   - Print/Printf/Println: Normal output to stdout (suppressed with --silent)
//   - Warn: Warnings to stderr (NOT suppressed with --silent)
//   - Error: Errors to stderr (NOT suppressed with --silent)
//
// This package exists to:
//  1. Centralize terminal output for consistent formatting
//  2. Enable --silent flag support
//  3. Keep ANSI color off when stdout is not a terminal
package term

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

var (
	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	silent bool
	color  = term.IsTerminal(int(os.Stdout.Fd()))
)

// ANSI sequences used for status coloring.
const (
	ansiGreen  = "\x1b[32m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

// SetSilent enables or disables silent mode.
// When silent, Print/Printf/Println are suppressed.
// Warn and Error are NOT suppressed (users should always see these).
func SetSilent(s bool) {
	mu.Lock()
	defer mu.Unlock()
	silent = s
}

// IsSilent returns whether silent mode is enabled.
func IsSilent() bool {
	mu.Lock()
	defer mu.Unlock()
	return silent
}

// SetColor forces color output on or off. The default follows whether
// stdout is a terminal.
func SetColor(c bool) {
	mu.Lock()
	defer mu.Unlock()
	color = c
}

// SetOutput sets the writer for stdout output.
// Pass nil to use os.Stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		stdout = os.Stdout
	} else {
		stdout = w
	}
}

// SetErrOutput sets the writer for stderr output.
// Pass nil to use os.Stderr.
func SetErrOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		stderr = os.Stderr
	} else {
		stderr = w
	}
}

// Print formats and writes to stdout.
// Suppressed when silent mode is enabled.
func Print(a ...any) {
	mu.Lock()
	defer mu.Unlock()
	if silent {
		return
	}
	_, _ = fmt.Fprint(stdout, a...)
}

// Printf formats according to a format specifier and writes to stdout.
// Suppressed when silent mode is enabled.
func Printf(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	if silent {
		return
	}
	_, _ = fmt.Fprintf(stdout, format, a...)
}

// Println formats and writes to stdout with a trailing newline.
// Suppressed when silent mode is enabled.
func Println(a ...any) {
	mu.Lock()
	defer mu.Unlock()
	if silent {
		return
	}
	_, _ = fmt.Fprintln(stdout, a...)
}

// Success writes a green (when colored) status line to stdout.
// Suppressed when silent mode is enabled.
func Success(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	if silent {
		return
	}
	msg := fmt.Sprintf(format, a...)
	if color {
		msg = ansiGreen + msg + ansiReset
	}
	_, _ = fmt.Fprintln(stdout, msg)
}

// Fail writes a red (when colored) status line to stdout.
// Suppressed when silent mode is enabled.
func Fail(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	if silent {
		return
	}
	msg := fmt.Sprintf(format, a...)
	if color {
		msg = ansiRed + msg + ansiReset
	}
	_, _ = fmt.Fprintln(stdout, msg)
}

// Warn writes a warning to stderr with a "warning: " prefix.
// NOT suppressed by silent mode.
func Warn(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	msg := fmt.Sprintf(format, a...)
	if color {
		msg = ansiYellow + "warning: " + msg + ansiReset
	} else {
		msg = "warning: " + msg
	}
	_, _ = fmt.Fprintln(stderr, msg)
}

// Error writes an error to stderr with an "error: " prefix.
// NOT suppressed by silent mode.
func Error(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	msg := fmt.Sprintf(format, a...)
	if color {
		msg = ansiRed + "error: " + msg + ansiReset
	} else {
		msg = "error: " + msg
	}
	_, _ = fmt.Fprintln(stderr, msg)
}
