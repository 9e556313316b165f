package thread

import (
	"github.com/charmbracelet/glamour"
)

const (
	DefaultStyle = "dark"
	DefaultWidth = 100
)

// Preview renders a draft document for the terminal.
func Preview(src []byte, style string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(max(width, 20)),
	)
	if err != nil {
		return "", err
	}
	return r.Render(string(src))
}
