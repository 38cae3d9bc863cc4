package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chatpilot/internal/domain"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// MainWindow is the window hosting the chat tab.
type MainWindow interface {
	Show(ctx context.Context) error
	Hide(ctx context.Context) error
	Focus(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	IsVisible(ctx context.Context) (bool, error)
	IsFocused(ctx context.Context) (bool, error)
	Eval(ctx context.Context, expr string, out any) error
}

// VisibilityFunc observes show and hide of the terminal-side windows.
type VisibilityFunc func(w domain.Window, visible bool)

// Windows implements the window and script ports. The main window is the
// Chrome tab; the launcher and settings windows live in the terminal and are
// plain visibility flags that the TUI observes.
type Windows struct {
	main   MainWindow
	logger *slog.Logger

	mu        sync.Mutex
	visible   map[domain.Window]bool
	observers []VisibilityFunc
}

// NewWindows creates the window manager.
func NewWindows(main MainWindow, logger *slog.Logger) *Windows {
	return &Windows{
		main:    main,
		logger:  logger,
		visible: map[domain.Window]bool{domain.WindowLauncher: false, domain.WindowSettings: false},
	}
}

var (
	_ domain.WindowManager = (*Windows)(nil)
	_ domain.ScriptChannel = (*Windows)(nil)
)

// Observe registers fn for visibility changes of the terminal windows.
func (w *Windows) Observe(fn VisibilityFunc) {
	w.mu.Lock()
	w.observers = append(w.observers, fn)
	w.mu.Unlock()
}

func (w *Windows) setVisible(win domain.Window, v bool) error {
	w.mu.Lock()
	if _, ok := w.visible[win]; !ok {
		w.mu.Unlock()
		return domain.NewDomainError("Windows", domain.ErrWindowNotFound, string(win))
	}
	w.visible[win] = v
	observers := append([]VisibilityFunc(nil), w.observers...)
	w.mu.Unlock()

	for _, fn := range observers {
		fn(win, v)
	}
	return nil
}

func (w *Windows) Show(ctx context.Context, win domain.Window) error {
	if win == domain.WindowMain {
		return domain.WrapOp("Windows.Show", w.main.Show(ctx))
	}
	return w.setVisible(win, true)
}

func (w *Windows) Hide(ctx context.Context, win domain.Window) error {
	if win == domain.WindowMain {
		return domain.WrapOp("Windows.Hide", w.main.Hide(ctx))
	}
	return w.setVisible(win, false)
}

func (w *Windows) Focus(ctx context.Context, win domain.Window) error {
	if win == domain.WindowMain {
		return domain.WrapOp("Windows.Focus", w.main.Focus(ctx))
	}
	// Terminal windows take focus by being shown.
	return w.setVisible(win, true)
}

func (w *Windows) Navigate(ctx context.Context, win domain.Window, url string) error {
	if win != domain.WindowMain {
		return domain.NewDomainError("Windows.Navigate", domain.ErrWindowNotFound, string(win))
	}
	if err := w.main.Navigate(ctx, url); err != nil {
		return domain.NewDomainError("Windows.Navigate", domain.ErrNavigation, err.Error())
	}
	return nil
}

func (w *Windows) IsVisible(ctx context.Context, win domain.Window) (bool, error) {
	if win == domain.WindowMain {
		return w.main.IsVisible(ctx)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.visible[win]
	if !ok {
		return false, domain.NewDomainError("Windows.IsVisible", domain.ErrWindowNotFound, string(win))
	}
	return v, nil
}

func (w *Windows) IsFocused(ctx context.Context, win domain.Window) (bool, error) {
	if win == domain.WindowMain {
		return w.main.IsFocused(ctx)
	}
	return w.IsVisible(ctx, win)
}

// Evaluate dispatches script to the window's page without waiting for what
// it schedules. Only the main window hosts a page.
func (w *Windows) Evaluate(ctx context.Context, win domain.Window, script string) error {
	if win != domain.WindowMain {
		return domain.NewDomainError("Windows.Evaluate", domain.ErrWindowNotFound, string(win))
	}
	if err := w.main.Eval(ctx, script, nil); err != nil {
		w.logger.Debug("script dispatch failed", "window", win, "error", err)
		return domain.NewDomainError("Windows.Evaluate", domain.ErrEvalDispatch, err.Error())
	}
	return nil
}

// ChromeWindow is the MainWindow of a Chrome tab.
type ChromeWindow struct {
	c      *Chrome
	logger *slog.Logger
}

// NewChromeWindow wraps the main tab.
func NewChromeWindow(c *Chrome, logger *slog.Logger) *ChromeWindow {
	return &ChromeWindow{c: c, logger: logger}
}

func (m *ChromeWindow) bounds(ctx context.Context) (cdpbrowser.WindowID, *cdpbrowser.Bounds, error) {
	var (
		id     cdpbrowser.WindowID
		bounds *cdpbrowser.Bounds
	)
	err := m.c.RunBrowser(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		var err error
		id, bounds, err = cdpbrowser.GetWindowForTarget().WithTargetID(m.c.TargetID()).Do(actx)
		return err
	}))
	return id, bounds, err
}

func (m *ChromeWindow) setState(ctx context.Context, state cdpbrowser.WindowState) error {
	id, _, err := m.bounds(ctx)
	if err != nil {
		return fmt.Errorf("window for target: %w", err)
	}
	return m.c.RunBrowser(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		return cdpbrowser.SetWindowBounds(id, &cdpbrowser.Bounds{WindowState: state}).Do(actx)
	}))
}

func (m *ChromeWindow) Show(ctx context.Context) error {
	if err := m.setState(ctx, cdpbrowser.WindowStateNormal); err != nil {
		// Headless browsers have no window; bringing the tab forward is enough.
		m.logger.Debug("restore window failed", "error", err)
	}
	return m.c.Run(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		return cdppage.BringToFront().Do(actx)
	}))
}

func (m *ChromeWindow) Hide(ctx context.Context) error {
	return m.setState(ctx, cdpbrowser.WindowStateMinimized)
}

func (m *ChromeWindow) Focus(ctx context.Context) error {
	err := m.c.RunBrowser(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		return target.ActivateTarget(m.c.TargetID()).Do(actx)
	}))
	if err != nil {
		return err
	}
	return m.c.Run(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		return cdppage.BringToFront().Do(actx)
	}))
}

// Navigate starts the navigation and returns without waiting for the load
// event. Network failures end up as an error page that the connectivity
// heuristic handles.
func (m *ChromeWindow) Navigate(ctx context.Context, url string) error {
	return m.c.Run(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		return cdp.Execute(actx, cdppage.CommandNavigate, cdppage.Navigate(url), nil)
	}))
}

func (m *ChromeWindow) IsVisible(ctx context.Context) (bool, error) {
	_, bounds, err := m.bounds(ctx)
	if err != nil {
		return false, err
	}
	return bounds == nil || bounds.WindowState != cdpbrowser.WindowStateMinimized, nil
}

func (m *ChromeWindow) IsFocused(ctx context.Context) (bool, error) {
	visible, err := m.IsVisible(ctx)
	if err != nil || !visible {
		return false, err
	}
	var focused bool
	if err := m.c.Eval(ctx, `document.hasFocus()`, &focused); err != nil {
		return false, err
	}
	return focused, nil
}

func (m *ChromeWindow) Eval(ctx context.Context, expr string, out any) error {
	return m.c.Eval(ctx, expr, out)
}
