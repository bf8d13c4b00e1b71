package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the terminal color scheme.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme is green on dim gray.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff5f5f"),
}

// Styles are the styles derived from a theme for one output.
type Styles struct {
	Label     lipgloss.Style
	Reasoning lipgloss.Style
	Text      lipgloss.Style
	Error     lipgloss.Style
	Help      lipgloss.Style
	Meter     lipgloss.Style
}

// NewStyles derives styles for w. Colors are dropped when w is not a
// terminal.
func NewStyles(w io.Writer, t Theme) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Label:     r.NewStyle().Bold(true).Foreground(t.Primary),
		Reasoning: r.NewStyle().Faint(true).Italic(true).Foreground(t.Dim),
		Text:      r.NewStyle(),
		Error:     r.NewStyle().Bold(true).Foreground(t.Error),
		Help:      r.NewStyle().Foreground(t.Dim),
		Meter:     r.NewStyle().Foreground(t.Primary),
	}
}

// paint styles each line of s separately. Rendering a multi-line string in
// one call would pad every line to the widest one.
func paint(st lipgloss.Style, s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		if ln != "" {
			lines[i] = st.Render(ln)
		}
	}
	return strings.Join(lines, "\n")
}
