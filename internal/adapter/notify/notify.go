// Package notify delivers desktop notifications over the freedesktop D-Bus
// interface, with a log-only fallback for sessions without a bus.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/time/rate"

	"chatpilot/internal/domain"
)

const (
	notificationsDest   = "org.freedesktop.Notifications"
	notificationsPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsMethod = "org.freedesktop.Notifications.Notify"
)

// caller is the part of dbus.BusObject the notifier uses.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBus sends notifications to the session's notification daemon. Bursts are
// collapsed by a rate limiter so a flurry of completions yields one popup.
type DBus struct {
	obj     caller
	conn    *dbus.Conn
	appName string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewDBus connects to the session bus.
func NewDBus(appName string, minInterval time.Duration, logger *slog.Logger) (*DBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, domain.NewDomainError("notify.NewDBus", domain.ErrNotifyFailed, err.Error())
	}
	d := newDBus(conn.Object(notificationsDest, notificationsPath), appName, minInterval, logger)
	d.conn = conn
	return d, nil
}

func newDBus(obj caller, appName string, minInterval time.Duration, logger *slog.Logger) *DBus {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &DBus{obj: obj, appName: appName, limiter: rate.NewLimiter(limit, 1), logger: logger}
}

// Notify shows n. Notifications arriving faster than the minimum interval
// are dropped.
func (d *DBus) Notify(ctx context.Context, n domain.Notification) error {
	if !d.limiter.Allow() {
		d.logger.Debug("notification dropped by rate limit", "title", n.Title)
		return nil
	}
	call := d.obj.CallWithContext(ctx, notificationsMethod, 0,
		d.appName,                 // app_name
		uint32(0),                 // replaces_id
		"",                        // app_icon
		n.Title,                   // summary
		n.Body,                    // body
		[]string{},                // actions
		map[string]dbus.Variant{}, // hints
		int32(-1),                 // expire_timeout: server default
	)
	if call.Err != nil {
		return domain.NewDomainError("DBus.Notify", domain.ErrNotifyFailed, call.Err.Error())
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		d.logger.Debug("notification id unavailable", "error", err)
	}
	d.logger.Debug("notification sent", "id", id, "title", n.Title)
	return nil
}

// Close releases the bus connection.
func (d *DBus) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// Log writes notifications to the logger instead of the desktop.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(_ context.Context, n domain.Notification) error {
	l.Logger.Info("notification", "title", n.Title, "body", n.Body)
	return nil
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(context.Context, domain.Notification) error { return nil }

// New builds the notifier for backend ("dbus", "log" or "none"). A D-Bus
// backend that cannot connect falls back to Log. The returned closer
// releases any connection.
func New(backend, appName string, minInterval time.Duration, logger *slog.Logger) (domain.Notifier, func() error, error) {
	noop := func() error { return nil }
	switch backend {
	case "dbus":
		d, err := NewDBus(appName, minInterval, logger)
		if err != nil {
			logger.Warn("desktop notifications unavailable, logging instead", "error", err)
			return Log{Logger: logger}, noop, nil
		}
		return d, d.Close, nil
	case "log":
		return Log{Logger: logger}, noop, nil
	case "none":
		return Discard{}, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown notify backend %q", backend)
	}
}

var (
	_ domain.Notifier = (*DBus)(nil)
	_ domain.Notifier = Log{}
	_ domain.Notifier = Discard{}
)
