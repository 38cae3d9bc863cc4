package launcher

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the launcher's bindings.
type keyMap struct {
	Submit   key.Binding
	Hide     key.Binding
	NewChat  key.Binding
	BotMode  key.Binding
	Settings key.Binding
	Help     key.Binding
	Open     key.Binding
	Quit     key.Binding

	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "Send")),
		Hide:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "Hide")),
		NewChat:  key.NewBinding(key.WithKeys("ctrl+k"), key.WithHelp("Ctrl+K", "New chat")),
		BotMode:  key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("Ctrl+B", "Kimi Claw")),
		Settings: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("Ctrl+S", "Settings")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "Help")),
		Open:     key.NewBinding(key.WithKeys("enter", "ctrl+o"), key.WithHelp("Enter", "Open")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("Ctrl+C", "Quit")),

		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "Up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "Down")),
		Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("Space", "Toggle")),
	}
}
