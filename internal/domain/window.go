package domain

import "context"

// Window names a host-managed surface.
type Window string

const (
	// WindowMain is the browser tab hosting the chat application.
	WindowMain Window = "main"
	// WindowLauncher is the quick-entry surface.
	WindowLauncher Window = "launcher"
	// WindowSettings is the settings surface.
	WindowSettings Window = "settings"
)

// WindowManager operates on named windows. Unknown names fail with ErrWindowNotFound.
type WindowManager interface {
	Show(ctx context.Context, w Window) error
	Hide(ctx context.Context, w Window) error
	Focus(ctx context.Context, w Window) error
	Navigate(ctx context.Context, w Window, url string) error
	IsVisible(ctx context.Context, w Window) (bool, error)
	IsFocused(ctx context.Context, w Window) (bool, error)
}

// ScriptChannel evaluates a script inside a window's page. It is
// fire-and-forget: only dispatch failures are reported, never script results.
type ScriptChannel interface {
	Evaluate(ctx context.Context, w Window, script string) error
}

// Notification is a desktop notification request.
type Notification struct {
	Title string
	Body  string
}

// Notifier delivers desktop notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// URLOpener hands a validated URL to the system handler.
type URLOpener interface {
	Open(url string) error
}
