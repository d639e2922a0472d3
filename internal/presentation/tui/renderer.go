package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a function that renders assistant markdown with glamour.
// When stdout is not a terminal the text is returned unchanged.
func NewRenderer(interactive bool) func(string) (string, error) {
	if !interactive {
		return func(s string) (string, error) { return s, nil }
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(s string) (string, error) { return s, nil }
	}
	return r.Render
}
