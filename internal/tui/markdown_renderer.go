package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// minDescriptionWidth keeps narrow terminals from wrapping descriptions one word per line.
const minDescriptionWidth = 24

// markdownRenderer turns task descriptions into styled terminal text.
// The glamour renderer is rebuilt only when the wrap width changes, and rendered output
// is memoized per description until then.
type markdownRenderer struct {
	style    string
	width    int
	term     *glamour.TermRenderer
	rendered map[string]string
}

func newMarkdownRenderer(style string) *markdownRenderer {
	if style == "" {
		style = "dark"
	}
	return &markdownRenderer{style: style}
}

func (r *markdownRenderer) render(description string, width int) string {
	description = strings.TrimSpace(description)
	if r == nil || description == "" {
		return ""
	}
	width = max(width, minDescriptionWidth)
	if r.term == nil || r.width != width {
		term, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return description
		}
		r.term, r.width, r.rendered = term, width, map[string]string{}
	}
	if out, ok := r.rendered[description]; ok {
		return out
	}
	out, err := r.term.Render(description)
	if err != nil {
		return description
	}
	out = strings.Trim(out, "\n")
	r.rendered[description] = out
	return out
}
