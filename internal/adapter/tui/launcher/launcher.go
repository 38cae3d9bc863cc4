package launcher

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"chatpilot/internal/domain"
)

// Launcher runs the launcher program and bridges host events into it.
type Launcher struct {
	logger  *slog.Logger
	bus     domain.EventBus
	program *tea.Program
}

// New creates the launcher program. Extra options (input/output overrides)
// are passed through to Bubble Tea.
func New(deps ModelDeps, bus domain.EventBus, opts ...tea.ProgramOption) *Launcher {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &Launcher{
		logger:  deps.Logger,
		bus:     bus,
		program: tea.NewProgram(NewModel(deps), opts...),
	}
}

// OnVisibility forwards a window visibility change into the program. It is
// registered with the window manager.
func (l *Launcher) OnVisibility(w domain.Window, visible bool) {
	l.program.Send(VisibilityMsg{Window: w, Visible: visible})
}

// Run blocks until the program exits or ctx is cancelled.
func (l *Launcher) Run(ctx context.Context) error {
	if l.bus != nil {
		unsubs := []func(){
			l.bus.Subscribe(domain.ChannelLauncherShown, func(_ context.Context, _ domain.Event) {
				l.program.Send(LauncherShownMsg{})
			}),
			l.bus.Subscribe(domain.ChannelSettingsChanged, func(_ context.Context, e domain.Event) {
				var s domain.AppSettings
				if err := e.Decode(&s); err != nil {
					l.logger.Debug("ignoring malformed settings-changed payload", "error", err)
					return
				}
				l.program.Send(SettingsChangedMsg{Settings: s})
			}),
			l.bus.Subscribe(domain.ChannelInjectResult, func(_ context.Context, e domain.Event) {
				var out domain.InjectionOutcome
				if err := e.Decode(&out); err != nil {
					l.logger.Debug("ignoring malformed inject-result payload", "error", err)
					return
				}
				if !out.Success && out.ErrorMessage() != "" {
					l.program.Send(InjectFailedMsg{Error: out.ErrorMessage()})
				}
			}),
		}
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()
	}

	go func() {
		<-ctx.Done()
		l.program.Send(QuitMsg{})
	}()

	_, err := l.program.Run()
	return err
}

// Stop signals the program to quit.
func (l *Launcher) Stop() {
	l.program.Send(QuitMsg{})
}
