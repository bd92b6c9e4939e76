// Package tui renders job progress and results in the terminal: a bubbletea
// model for interactive sessions, a plain progress bar for redirected output,
// and a styled summary.
package tui

import (
	"os"

	"golang.org/x/term"
)

// OutputMode is how much terminal capability the renderer may use.
type OutputMode int

const (
	// OutputModePlain writes unstyled lines; stdout is not a terminal.
	OutputModePlain OutputMode = iota
	// OutputModeStyled writes styled, non-interactive output.
	OutputModeStyled
	// OutputModeInteractive runs the full-screen bubbletea program.
	OutputModeInteractive
)

// String returns the mode name.
func (m OutputMode) String() string {
	switch m {
	case OutputModeInteractive:
		return "interactive"
	case OutputModeStyled:
		return "styled"
	default:
		return "plain"
	}
}

// IsTTY reports whether stdout is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsInputTTY reports whether stdin is a terminal.
func IsInputTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// DetectOutputMode picks the output mode for stdout. forcePlain wins over
// everything; noColor or a CI/dumb terminal downgrades interactive output to
// styled or plain.
func DetectOutputMode(forcePlain, noColor, nonInteractive bool) OutputMode {
	return detectOutputMode(forcePlain, noColor, nonInteractive, IsTTY(), os.Getenv)
}

func detectOutputMode(forcePlain, noColor, nonInteractive, tty bool, getenv func(string) string) OutputMode {
	if forcePlain || !tty {
		return OutputModePlain
	}
	if getenv("TERM") == "dumb" {
		return OutputModePlain
	}
	if noColor || getenv("NO_COLOR") != "" {
		return OutputModePlain
	}
	if nonInteractive || getenv("CI") != "" {
		return OutputModeStyled
	}
	return OutputModeInteractive
}
