package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title   lipgloss.Style
	heading lipgloss.Style
	body    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	failure lipgloss.Style
}

// newStyles binds the palette to w so colour is dropped when w is not a
// terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		body:    r.NewStyle().PaddingLeft(2),
		muted:   r.NewStyle().Foreground(lipgloss.Color("245")),
		success: r.NewStyle().Foreground(lipgloss.Color("42")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("214")),
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

func (s styles) section(heading, text string) string {
	return s.heading.Render(heading) + "\n" + s.body.Render(strings.TrimRight(text, "\n"))
}

func (s styles) bullets(items []string) string {
	if len(items) == 0 {
		return s.body.Render(s.muted.Render("(none)"))
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return s.body.Render(strings.Join(lines, "\n"))
}
