package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// With styled false the markdown is returned as-is, for pipes and files.
func NewRenderer(styled bool) (func(string) (string, error), error) {
	if !styled {
		return func(markdown string) (string, error) {
			return markdown, nil
		}, nil
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}
