package launcher

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chatpilot/internal/domain"
)

// submitCmd hands req to the host with a deadline so a wedged tab cannot
// leave the launcher stuck in flight.
func submitCmd(c Commands, req domain.InjectionRequest, timeout time.Duration, gen uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		run, err := c.SubmitMessage(ctx, req)
		return submitDoneMsg{Run: run, Err: err, Gen: gen}
	}
}

func loadSettingsCmd(c Commands, applyDefault bool) tea.Cmd {
	return func() tea.Msg {
		s, err := c.GetSettings(context.Background())
		return settingsLoadedMsg{Settings: s, Err: err, ApplyDefault: applyDefault}
	}
}

func saveSettingsCmd(c Commands, s domain.AppSettings) tea.Cmd {
	return func() tea.Msg {
		return settingsSavedMsg{Settings: s, Err: c.SaveSettings(context.Background(), s)}
	}
}

// windowCmd runs a host window command, reporting only failures.
func windowCmd(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(context.Background()); err != nil {
			return commandErrMsg{Op: op, Err: err}
		}
		return nil
	}
}

func bannerTimeoutCmd(d time.Duration, gen uint64) tea.Cmd {
	return tea.Tick(d, func(_ time.Time) tea.Msg {
		return bannerExpiredMsg{Gen: gen}
	})
}
