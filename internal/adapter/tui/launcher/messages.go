// Package launcher implements the quick-entry window: a Bubble Tea program
// that composes a message, picks the chat mode and hands it to the host.
package launcher

import "chatpilot/internal/domain"

// VisibilityMsg reports a terminal window being shown or hidden.
type VisibilityMsg struct {
	Window  domain.Window
	Visible bool
}

// LauncherShownMsg is delivered when the host announces launcher-shown.
type LauncherShownMsg struct{}

// SettingsChangedMsg carries settings saved from any surface.
type SettingsChangedMsg struct {
	Settings domain.AppSettings
}

// InjectFailedMsg carries the page's failure message for a run.
type InjectFailedMsg struct {
	Error string
}

// QuitMsg signals the program to exit.
type QuitMsg struct{}

// submitDoneMsg ends an in-flight submit. Gen discards stale completions.
type submitDoneMsg struct {
	Run string
	Err error
	Gen uint64
}

// settingsLoadedMsg carries a settings read. ApplyDefault also resets the
// new-chat toggle from NewChatDefault.
type settingsLoadedMsg struct {
	Settings     domain.AppSettings
	Err          error
	ApplyDefault bool
}

type settingsSavedMsg struct {
	Settings domain.AppSettings
	Err      error
}

// bannerExpiredMsg clears the banner it was scheduled for.
type bannerExpiredMsg struct {
	Gen uint64
}

// commandErrMsg reports a failed window command.
type commandErrMsg struct {
	Op  string
	Err error
}
