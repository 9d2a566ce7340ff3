package ui

import (
	"os"

	"golang.org/x/term"
)

// IsInteractive reports whether a human can answer a prompt: stdin and
// stdout are terminals and neither SQLPORT_NON_INTERACTIVE=1 nor CI is set.
func IsInteractive() bool {
	if os.Getenv("SQLPORT_NON_INTERACTIVE") == "1" || os.Getenv("CI") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
