package views

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

var (
	mdMu sync.Mutex
	// keyed by wrap width
	mdRenderers = map[int]*glamour.TermRenderer{}
)

// renderMarkdown renders a task description for the terminal. It falls back
// to the raw text when rendering fails.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	width = max(width, 10)

	mdMu.Lock()
	defer mdMu.Unlock()
	r := mdRenderers[width]
	if r == nil {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		mdRenderers[width] = r
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}
