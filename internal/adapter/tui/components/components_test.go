package components

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputAreaSubmitTrimsAndResets(t *testing.T) {
	m := NewInputArea(100)
	m.SetValue("  hello  ")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, InputSubmitMsg{Value: "hello"}, cmd())
	assert.Empty(t, m.Value())
}

func TestInputAreaEmptyEnterIgnored(t *testing.T) {
	m := NewInputArea(100)
	m.SetValue("   ")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "   ", m.Value())
}

func TestInputAreaDisabledIgnoresKeys(t *testing.T) {
	m := NewInputArea(100)
	m.SetValue("queued")
	m.SetEnabled(false)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "queued", m.Value())
}

func TestInputAreaTyping(t *testing.T) {
	m := NewInputArea(100)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	assert.Equal(t, "hi", m.Value())
}

func TestInputAreaPlaceholder(t *testing.T) {
	m := NewInputArea(100)
	m.SetPlaceholder("Ask Kimi anything...")
	assert.Equal(t, "Ask Kimi anything...", m.Placeholder())
}

func TestStatusBarView(t *testing.T) {
	sb := NewStatusBar()
	sb.SetWidth(80)
	sb.Hints = []KeyHint{{Key: "Enter", Desc: "Send"}, {Key: "Esc", Desc: "Hide"}}
	sb.Badges = []string{"NEW"}
	sb.Extra = "Sending"

	out := sb.View()
	for _, want := range []string{"Enter", "Send", "Esc", "NEW", "Sending"} {
		assert.True(t, strings.Contains(out, want), "missing %q in %q", want, out)
	}
}

func TestDividerNegativeWidth(t *testing.T) {
	assert.NotPanics(t, func() { Divider(-3) })
}
