package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatpilot/internal/adapter/tui/components"
	"chatpilot/internal/adapter/tui/theme"
	"chatpilot/internal/adapter/tui/uxerror"
	"chatpilot/internal/domain"
)

const (
	placeholderNewChat  = "Ask Kimi anything..."
	placeholderContinue = "Continue current chat..."
	placeholderBot      = "Ask Kimi Claw..."
	placeholderFailed   = "Failed to send, try again"

	defaultBannerDuration = 2500 * time.Millisecond
	defaultSubmitTimeout  = 10 * time.Second
)

// Commands is the host surface the launcher drives.
type Commands interface {
	SubmitMessage(ctx context.Context, req domain.InjectionRequest) (string, error)
	ShowLauncher(ctx context.Context) error
	HideLauncher(ctx context.Context) error
	ShowSettings(ctx context.Context) error
	HideSettings(ctx context.Context) error
	GetSettings(ctx context.Context) (domain.AppSettings, error)
	SaveSettings(ctx context.Context, s domain.AppSettings) error
}

// ModelDeps are dependencies injected into the launcher model.
type ModelDeps struct {
	Commands       Commands
	Logger         *slog.Logger
	BannerDuration time.Duration
	SubmitTimeout  time.Duration
	// Visible starts the launcher shown instead of idle.
	Visible bool
}

type view int

const (
	viewLauncher view = iota
	viewSettings
)

// Model is the root Bubble Tea model for the launcher.
type Model struct {
	deps ModelDeps
	keys keyMap

	input     components.InputAreaModel
	statusBar components.StatusBarModel
	help      *helpPanel
	settings  settingsView

	visible  bool
	view     view
	showHelp bool
	newChat  bool
	botMode  bool

	// In-flight submit: pending holds the text to restore on failure.
	submitting bool
	pending    string
	gen        uint64

	banner    string
	bannerGen uint64

	width    int
	height   int
	quitting bool
}

// NewModel creates the launcher model. New chat starts enabled until the
// stored default is loaded.
func NewModel(deps ModelDeps) Model {
	if deps.BannerDuration <= 0 {
		deps.BannerDuration = defaultBannerDuration
	}
	if deps.SubmitTimeout <= 0 {
		deps.SubmitTimeout = defaultSubmitTimeout
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	m := Model{
		deps:      deps,
		keys:      defaultKeys(),
		input:     components.NewInputArea(domain.MaxMessageLength),
		statusBar: components.NewStatusBar(),
		help:      &helpPanel{},
		settings:  settingsView{values: domain.DefaultSettings()},
		visible:   deps.Visible,
		newChat:   true,
	}
	m.refresh()
	return m
}

// Init loads the stored new-chat default.
func (m Model) Init() tea.Cmd {
	return loadSettingsCmd(m.deps.Commands, true)
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.InputSubmitMsg:
		return m.handleSubmit(msg.Value)

	case submitDoneMsg:
		if msg.Gen != m.gen {
			return m, nil
		}
		m.submitting = false
		m.input.SetEnabled(true)
		m.statusBar.Extra = ""
		if msg.Err != nil {
			m.deps.Logger.Warn("submit failed", "error", msg.Err)
			m.input.SetValue(m.pending)
			m.pending = ""
			return m, m.showBanner(uxerror.Humanize(msg.Err).Short())
		}
		m.deps.Logger.Debug("submitted", "run", msg.Run)
		m.pending = ""
		return m, nil

	case InjectFailedMsg:
		m.deps.Logger.Warn("message injection failed", "error", msg.Error)
		m.input.Reset()
		cmd := m.showBanner("Failed to send: " + msg.Error)
		m.input.SetPlaceholder(placeholderFailed)
		return m, tea.Batch(cmd, windowCmd("show launcher", m.deps.Commands.ShowLauncher))

	case bannerExpiredMsg:
		if msg.Gen == m.bannerGen {
			m.banner = ""
			m.refresh()
		}
		return m, nil

	case VisibilityMsg:
		return m.handleVisibility(msg)

	case LauncherShownMsg:
		m.input.Reset()
		m.input.SetEnabled(!m.submitting)
		return m, loadSettingsCmd(m.deps.Commands, true)

	case SettingsChangedMsg:
		m.settings.values = msg.Settings
		m.newChat = msg.Settings.NewChatDefault
		m.refresh()
		return m, nil

	case settingsLoadedMsg:
		if msg.Err != nil {
			m.deps.Logger.Warn("settings unavailable, using defaults", "error", msg.Err)
			return m, nil
		}
		m.settings.values = msg.Settings
		if msg.ApplyDefault {
			m.newChat = msg.Settings.NewChatDefault
			m.refresh()
		}
		return m, nil

	case settingsSavedMsg:
		if msg.Err != nil {
			m.deps.Logger.Warn("save settings failed", "error", msg.Err)
			m.settings.status = ""
			m.settings.err = uxerror.Humanize(msg.Err).Short()
			return m, nil
		}
		m.settings.status = theme.SymbolSuccess + " Saved"
		return m, nil

	case commandErrMsg:
		m.deps.Logger.Warn("window command failed", "op", msg.Op, "error", msg.Err)
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	if m.visible && m.view == viewLauncher && !m.submitting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}

	if !m.visible {
		if key.Matches(msg, m.keys.Open) {
			return m, windowCmd("show launcher", m.deps.Commands.ShowLauncher)
		}
		return m, nil
	}

	if m.view == viewSettings {
		return m.handleSettingsKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Hide):
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		m.input.Reset()
		return m, windowCmd("hide launcher", m.deps.Commands.HideLauncher)

	case key.Matches(msg, m.keys.NewChat):
		m.newChat = !m.newChat
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.BotMode):
		m.botMode = !m.botMode
		if m.botMode {
			m.newChat = true
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Settings):
		m.view = viewSettings
		m.settings.status = ""
		m.settings.err = ""
		return m, tea.Batch(
			windowCmd("show settings", m.deps.Commands.ShowSettings),
			loadSettingsCmd(m.deps.Commands, false),
		)

	case key.Matches(msg, m.keys.Help) && m.input.Value() == "":
		m.showHelp = !m.showHelp
		return m, nil
	}

	if m.submitting {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Hide):
		m.view = viewLauncher
		return m, windowCmd("hide settings", m.deps.Commands.HideSettings)
	case key.Matches(msg, m.keys.Up):
		m.settings.up()
	case key.Matches(msg, m.keys.Down):
		m.settings.down()
	case key.Matches(msg, m.keys.Toggle):
		return m, saveSettingsCmd(m.deps.Commands, m.settings.toggle())
	}
	return m, nil
}

// handleSubmit validates and dispatches one message. Only one submit is in
// flight at a time; the input stays disabled until it completes.
func (m Model) handleSubmit(value string) (tea.Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	message := strings.TrimSpace(value)
	if message == "" {
		return m, nil
	}
	if n := utf8.RuneCountInString(message); n > domain.MaxMessageLength {
		m.input.SetValue(message)
		return m, m.showBanner(fmt.Sprintf("Message too long (%d/%d)", n, domain.MaxMessageLength))
	}

	m.gen++
	m.submitting = true
	m.pending = message
	m.input.SetEnabled(false)
	m.statusBar.Extra = theme.SymbolSpinner + " Sending" + theme.SymbolEllipsis

	req := domain.InjectionRequest{Message: message, NewChat: m.newChat, BotMode: m.botMode}
	return m, submitCmd(m.deps.Commands, req, m.deps.SubmitTimeout, m.gen)
}

func (m Model) handleVisibility(msg VisibilityMsg) (tea.Model, tea.Cmd) {
	switch msg.Window {
	case domain.WindowLauncher:
		m.visible = msg.Visible
		if !msg.Visible {
			m.showHelp = false
			m.view = viewLauncher
			if !m.submitting {
				m.input.Reset()
			}
		}
	case domain.WindowSettings:
		if msg.Visible {
			m.visible = true
			m.view = viewSettings
		} else if m.view == viewSettings {
			m.view = viewLauncher
		}
	}
	return m, nil
}

// showBanner displays text for the banner duration. A newer banner
// supersedes the timer of an older one.
func (m *Model) showBanner(text string) tea.Cmd {
	m.bannerGen++
	m.banner = text
	return bannerTimeoutCmd(m.deps.BannerDuration, m.bannerGen)
}

// refresh recomputes the placeholder and the status bar from the mode.
func (m *Model) refresh() {
	switch {
	case m.botMode:
		m.input.SetPlaceholder(placeholderBot)
	case m.newChat:
		m.input.SetPlaceholder(placeholderNewChat)
	default:
		m.input.SetPlaceholder(placeholderContinue)
	}

	badge := func(on bool, label string) string {
		if on {
			return theme.Badge.Render(theme.SymbolOn + " " + label)
		}
		return theme.BadgeOff.Render(theme.SymbolOff + " " + label)
	}
	m.statusBar.Badges = []string{badge(m.newChat, "New chat"), badge(m.botMode, "Claw")}
	m.statusBar.Hints = []components.KeyHint{
		{Key: "Enter", Desc: "Send"},
		{Key: "Ctrl+K", Desc: "New"},
		{Key: "Ctrl+B", Desc: "Claw"},
		{Key: "?", Desc: "Help"},
	}
}

func (m *Model) layout() {
	w := theme.Clamp(m.width-4, 20, theme.MaxContentWidth)
	m.input.SetWidth(w)
	m.statusBar.SetWidth(w)
}

func (m Model) contentWidth() int {
	return theme.Clamp(m.width-4, 20, theme.MaxContentWidth)
}

// View renders the launcher.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.visible {
		return theme.Dim.Render("chatpilot is running. Press Enter to open the launcher, Ctrl+C to quit.")
	}

	var body string
	if m.view == viewSettings {
		body = m.settings.View() + "\n" + theme.TextMuted.Render("↑/↓ select  Space toggle  Esc back")
	} else {
		body = m.launcherView()
	}

	frame := theme.BorderActive
	if m.banner != "" {
		frame = theme.BorderError
	}
	return frame.Width(m.contentWidth()).Render(body)
}

func (m Model) launcherView() string {
	w := m.contentWidth()
	parts := []string{theme.Title.Render("Kimi")}
	if m.banner != "" {
		parts = append(parts, theme.Banner.Render(theme.SymbolError+" "+m.banner))
	}
	parts = append(parts, m.input.View())
	if m.showHelp {
		parts = append(parts, components.Divider(w), m.help.View(w))
	}
	parts = append(parts, m.statusBar.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
