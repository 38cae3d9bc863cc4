package launcher

import (
	"strings"

	"chatpilot/internal/adapter/tui/theme"
	"chatpilot/internal/domain"
)

// settingsView is the two-toggle settings panel. Every toggle saves
// immediately.
type settingsView struct {
	values domain.AppSettings
	cursor int
	status string
	err    string
}

var settingsRows = []struct {
	label string
	desc  string
}{
	{"Start new chat by default", "The launcher opens in new-chat mode"},
	{"Notify when a response is ready", "Only while the chat window is in the background"},
}

func (s *settingsView) up() {
	if s.cursor > 0 {
		s.cursor--
	}
}

func (s *settingsView) down() {
	if s.cursor < len(settingsRows)-1 {
		s.cursor++
	}
}

// toggle flips the selected row and returns the new settings.
func (s *settingsView) toggle() domain.AppSettings {
	switch s.cursor {
	case 0:
		s.values.NewChatDefault = !s.values.NewChatDefault
	case 1:
		s.values.NotificationsEnabled = !s.values.NotificationsEnabled
	}
	s.status = "Saving" + theme.SymbolEllipsis
	s.err = ""
	return s.values
}

func (s *settingsView) View() string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Settings"))
	b.WriteString("\n\n")

	checked := []bool{s.values.NewChatDefault, s.values.NotificationsEnabled}
	for i, row := range settingsRows {
		mark := theme.SymbolOff
		if checked[i] {
			mark = theme.SymbolOn
		}
		line := mark + " " + row.label
		if i == s.cursor {
			line = theme.TextInfo.Render(theme.SymbolArrowR + " " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n    ")
		b.WriteString(theme.TextMuted.Render(row.desc))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case s.err != "":
		b.WriteString(theme.TextError.Render(theme.SymbolError + " " + s.err))
	case s.status != "":
		b.WriteString(theme.TextMuted.Render(s.status))
	}
	return b.String()
}
