package launcher

import (
	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# Launcher keys

| Key | Action |
|-----|--------|
| Enter | Send the message to Kimi |
| Alt+Enter | Insert a newline |
| Ctrl+K | Toggle *new chat* (otherwise continue the current chat) |
| Ctrl+B | Toggle *Kimi Claw*; also starts a new chat |
| Ctrl+S | Open settings |
| Esc | Hide the launcher |
| ? | Toggle this help (on an empty message) |
| Ctrl+C | Quit chatpilot |

Run ` + "`chatpilot toggle`" + ` from a desktop shortcut to bring the launcher back.
`

// helpPanel renders the key reference with glamour, caching by width.
type helpPanel struct {
	width    int
	rendered string
}

func (h *helpPanel) View(width int) string {
	if width <= 0 {
		width = 60
	}
	if h.rendered != "" && h.width == width {
		return h.rendered
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	h.width = width
	h.rendered = out
	return out
}
