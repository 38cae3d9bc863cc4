package usecase

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"

	"chatpilot/internal/domain"
	"chatpilot/internal/infra/tracer"
	"chatpilot/internal/script"
	"chatpilot/internal/security"
)

// Page invoke commands the content scripts may call through the bridge.
const (
	InvokeNavigateToOffline = "navigate_to_offline"
	InvokeNavigateToChat    = "navigate_to_chat"
	InvokeOpenExternalLink  = "open_external_link"
)

// Notification text for a finished response.
const (
	notifyTitle = "Kimi"
	notifyBody  = "Response ready"
)

// offlineContainerID is the element of the offline view that carries the
// online/offline class.
const offlineContainerID = "main-container"

// PageDriver starts the page automation for the main window. The script
// strategy hands rendered content scripts to the page; the driver strategy
// runs the same state machines host-side.
type PageDriver interface {
	Inject(ctx context.Context, req domain.InjectionRequest, runID string) error
	Watch(ctx context.Context) error
	MonitorConnectivity(ctx context.Context) error
}

// OnlineHandler is implemented by drivers that react to the browser's
// online transition host-side.
type OnlineHandler interface {
	OnOnline(ctx context.Context, currentURL string) error
}

// HostDeps holds injected dependencies for the host.
type HostDeps struct {
	Windows  domain.WindowManager
	Scripts  domain.ScriptChannel
	Driver   PageDriver // optional, nil = script strategy
	Settings *SettingsService
	Bus      domain.EventBus
	Notifier domain.Notifier
	Opener   domain.URLOpener
	Site     script.SiteConfig
	Profile  script.TimeoutProfile
	Chains   script.Chains
	Logger   *slog.Logger

	// OfflinePath is the path of the offline view on the local origin.
	OfflinePath string
	// StyleID and HeaderPadding configure the header inset wrapper.
	StyleID       string
	HeaderPadding string

	// Wait and NewRunID are optional; nil selects a timer wait and ULIDs.
	Wait     func(ctx context.Context, d time.Duration) error
	NewRunID func() string
}

// Host implements the commands the launcher, the control API and the page
// bridge call, and relays page events to desktop notifications.
type Host struct {
	deps HostDeps

	mu     sync.Mutex
	unsubs []func()
}

// NewHost creates a host. A nil driver selects the script strategy.
func NewHost(deps HostDeps) *Host {
	if deps.Driver == nil {
		deps.Driver = NewScriptDriver(deps.Scripts, deps.Site, deps.Profile, deps.Chains)
	}
	if deps.Wait == nil {
		deps.Wait = sleep
	}
	if deps.NewRunID == nil {
		deps.NewRunID = newRunID
	}
	if deps.OfflinePath == "" {
		deps.OfflinePath = "/offline.html"
	}
	if deps.StyleID == "" {
		deps.StyleID = "chatpilot-custom-styles"
	}
	if deps.HeaderPadding == "" {
		deps.HeaderPadding = "2.5rem"
	}
	return &Host{deps: deps}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func newRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Start subscribes the host to page events. Call Stop to unsubscribe.
func (h *Host) Start() {
	bus := h.deps.Bus
	subs := []func(){
		bus.Subscribe(domain.ChannelResponseComplete, h.onResponseComplete),
		bus.Subscribe(domain.ChannelInjectResult, h.onInjectResult),
		bus.Subscribe(domain.ChannelPageLoaded, h.onPageLoaded),
		bus.Subscribe(domain.ChannelNetworkOffline, h.onNetworkOffline),
	}
	if _, ok := h.deps.Driver.(OnlineHandler); ok {
		subs = append(subs, bus.Subscribe(domain.ChannelNetworkOnline, h.onNetworkOnline))
	}
	h.mu.Lock()
	h.unsubs = append(h.unsubs, subs...)
	h.mu.Unlock()
	h.deps.Logger.Debug("host started", "driver", fmt.Sprintf("%T", h.deps.Driver))
}

// Stop unsubscribes the host from page events.
func (h *Host) Stop() {
	h.mu.Lock()
	unsubs := h.unsubs
	h.unsubs = nil
	h.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// SubmitMessage brings the main window forward, navigates when a new chat or
// bot mode is requested, and dispatches the injection and the response
// watcher. It returns the run ID once both are dispatched; the outcome
// arrives later on the inject-result channel.
func (h *Host) SubmitMessage(ctx context.Context, req domain.InjectionRequest) (string, error) {
	req = req.Normalize()
	ctx, span := tracer.StartSpan(ctx, "host.submit_message",
		trace.WithAttributes(
			tracer.IntAttr("message.length", len(req.Message)),
			tracer.StringAttr("mode", submitMode(req)),
			tracer.BoolAttr("new_chat", req.NewChat),
		),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		tracer.RecordError(span, err)
		return "", err
	}

	w := h.deps.Windows
	steps := []func() error{
		func() error { return w.Hide(ctx, domain.WindowLauncher) },
		func() error { return w.Show(ctx, domain.WindowMain) },
		func() error { return w.Focus(ctx, domain.WindowMain) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			tracer.RecordError(span, err)
			return "", domain.WrapOp("Host.SubmitMessage", err)
		}
	}

	p := h.deps.Profile
	var target string
	wait := p.WindowVisible
	switch {
	case req.BotMode:
		target, wait = h.deps.Site.BotURL, p.BotPageLoadWait
	case req.NewChat:
		target, wait = h.deps.Site.ChatURL, p.PageLoadWait
	}
	if target != "" {
		if err := w.Navigate(ctx, domain.WindowMain, target); err != nil {
			tracer.RecordError(span, err)
			return "", domain.WrapOp("Host.SubmitMessage", err)
		}
	}
	if err := h.deps.Wait(ctx, wait); err != nil {
		tracer.RecordError(span, err)
		return "", domain.WrapOp("Host.SubmitMessage", err)
	}

	runID := h.deps.NewRunID()
	if err := h.deps.Driver.Inject(ctx, req, runID); err != nil {
		tracer.RecordError(span, err)
		return "", domain.WrapOp("Host.SubmitMessage", err)
	}
	if err := h.deps.Driver.Watch(ctx); err != nil {
		// The message is already on its way; a missing watcher only costs
		// the completion notification.
		h.deps.Logger.Warn("response watcher dispatch failed", "run", runID, "error", err)
	}

	h.deps.Logger.Info("message submitted", "run", runID, "mode", submitMode(req), "target", target)
	tracer.SetOK(span)
	return runID, nil
}

func submitMode(req domain.InjectionRequest) string {
	switch {
	case req.BotMode:
		return "bot"
	case req.NewChat:
		return "new_chat"
	default:
		return "continue"
	}
}

// ShowLauncher shows and focuses the launcher and announces it.
func (h *Host) ShowLauncher(ctx context.Context) error {
	w := h.deps.Windows
	if err := w.Show(ctx, domain.WindowLauncher); err != nil {
		return domain.WrapOp("Host.ShowLauncher", err)
	}
	if err := w.Focus(ctx, domain.WindowLauncher); err != nil {
		return domain.WrapOp("Host.ShowLauncher", err)
	}
	h.emit(ctx, domain.ChannelLauncherShown, struct{}{})
	return nil
}

// HideLauncher hides the launcher.
func (h *Host) HideLauncher(ctx context.Context) error {
	return domain.WrapOp("Host.HideLauncher", h.deps.Windows.Hide(ctx, domain.WindowLauncher))
}

// ToggleLauncher hides a visible launcher and shows a hidden one.
func (h *Host) ToggleLauncher(ctx context.Context) error {
	visible, err := h.deps.Windows.IsVisible(ctx, domain.WindowLauncher)
	if err != nil {
		h.deps.Logger.Debug("launcher visibility unknown, showing", "error", err)
		visible = false
	}
	if visible {
		return h.HideLauncher(ctx)
	}
	return h.ShowLauncher(ctx)
}

// ShowMainWindow shows and focuses the chat window.
func (h *Host) ShowMainWindow(ctx context.Context) error {
	return h.showAndFocus(ctx, domain.WindowMain, "Host.ShowMainWindow")
}

// ShowSettings shows and focuses the settings view.
func (h *Host) ShowSettings(ctx context.Context) error {
	return h.showAndFocus(ctx, domain.WindowSettings, "Host.ShowSettings")
}

// HideSettings closes the settings view.
func (h *Host) HideSettings(ctx context.Context) error {
	return domain.WrapOp("Host.HideSettings", h.deps.Windows.Hide(ctx, domain.WindowSettings))
}

func (h *Host) showAndFocus(ctx context.Context, win domain.Window, op string) error {
	if err := h.deps.Windows.Show(ctx, win); err != nil {
		return domain.WrapOp(op, err)
	}
	return domain.WrapOp(op, h.deps.Windows.Focus(ctx, win))
}

// NavigateToChat points the main window at the chat application.
func (h *Host) NavigateToChat(ctx context.Context) error {
	ctx, span := tracer.StartSpan(ctx, "host.navigate_to_chat")
	defer span.End()
	if err := h.deps.Windows.Navigate(ctx, domain.WindowMain, h.deps.Site.ChatURL); err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("Host.NavigateToChat", err)
	}
	tracer.SetOK(span)
	return nil
}

// NavigateToOffline shows the local offline view and marks it offline once
// it has settled.
func (h *Host) NavigateToOffline(ctx context.Context) error {
	ctx, span := tracer.StartSpan(ctx, "host.navigate_to_offline")
	defer span.End()

	target := strings.TrimRight(h.deps.Site.LocalOrigin, "/") + h.deps.OfflinePath
	if err := h.deps.Windows.Navigate(ctx, domain.WindowMain, target); err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("Host.NavigateToOffline", err)
	}
	if err := h.deps.Wait(ctx, h.deps.Profile.OfflineSettle); err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("Host.NavigateToOffline", err)
	}
	if err := h.deps.Scripts.Evaluate(ctx, domain.WindowMain, script.OfflineStateScript(offlineContainerID)); err != nil {
		h.deps.Logger.Debug("offline state script failed", "error", err)
	}
	tracer.SetOK(span)
	return nil
}

// GetSettings returns the persisted settings.
func (h *Host) GetSettings(ctx context.Context) (domain.AppSettings, error) {
	return h.deps.Settings.Get(ctx)
}

// SaveSettings persists the settings and announces the change.
func (h *Host) SaveSettings(ctx context.Context, s domain.AppSettings) error {
	if err := h.deps.Settings.Save(ctx, s); err != nil {
		return domain.WrapOp("Host.SaveSettings", err)
	}
	h.emit(ctx, domain.ChannelSettingsChanged, s)
	return nil
}

// OpenExternalLink validates rawURL against the allow-list and hands it to
// the system opener.
func (h *Host) OpenExternalLink(ctx context.Context, rawURL string) error {
	_, span := tracer.StartSpan(ctx, "host.open_external_link")
	defer span.End()

	if err := security.ValidateExternalURL(rawURL); err != nil {
		h.deps.Logger.Warn("external link rejected", "reason", security.RejectionReason(err))
		tracer.RecordError(span, err)
		return err
	}
	if err := h.deps.Opener.Open(strings.TrimSpace(rawURL)); err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("Host.OpenExternalLink", err)
	}
	tracer.SetOK(span)
	return nil
}

// Invoke dispatches a command requested by the page through the bridge.
func (h *Host) Invoke(ctx context.Context, name string, payload json.RawMessage) error {
	switch name {
	case InvokeNavigateToOffline:
		return h.NavigateToOffline(ctx)
	case InvokeNavigateToChat:
		return h.NavigateToChat(ctx)
	case InvokeOpenExternalLink:
		url := gjson.GetBytes(payload, "url")
		if url.Type != gjson.String {
			return domain.NewDomainError("Host.Invoke", domain.ErrInvalidInput, "open_external_link needs a url string")
		}
		return h.OpenExternalLink(ctx, url.String())
	default:
		return domain.NewDomainError("Host.Invoke", domain.ErrNotFound, fmt.Sprintf("unknown command %q", name))
	}
}

// ApplyPageWrappers installs the per-load page helpers: the connectivity
// monitor, the link interceptor and the header inset. Failures are logged
// and otherwise ignored.
func (h *Host) ApplyPageWrappers(ctx context.Context) {
	log := h.deps.Logger
	if err := h.deps.Driver.MonitorConnectivity(ctx); err != nil {
		log.Debug("connectivity monitor not applied", "error", err)
	}
	scripts := []struct {
		name string
		js   string
	}{
		{"link interceptor", script.LinkInterceptorScript(h.deps.Site)},
		{"header inset", script.HeaderInsetScript(h.deps.StyleID, h.deps.HeaderPadding)},
	}
	if _, ok := h.deps.Driver.(OnlineHandler); ok {
		scripts = append(scripts, struct {
			name string
			js   string
		}{"network events", script.NetworkEventsScript()})
	}
	for _, s := range scripts {
		if err := h.deps.Scripts.Evaluate(ctx, domain.WindowMain, s.js); err != nil {
			log.Debug("page wrapper not applied", "wrapper", s.name, "error", err)
		}
	}
}

func (h *Host) emit(ctx context.Context, ch domain.Channel, payload any) {
	if err := h.deps.Bus.Emit(ctx, ch, payload); err != nil {
		h.deps.Logger.Warn("emit failed", "channel", ch, "error", err)
	}
}

func (h *Host) onResponseComplete(ctx context.Context, _ domain.Event) {
	if !h.deps.Settings.NotificationsEnabled(ctx) {
		return
	}
	focused, err := h.deps.Windows.IsFocused(ctx, domain.WindowMain)
	if err != nil {
		h.deps.Logger.Debug("main window focus unknown", "error", err)
		focused = false
	}
	if focused {
		return
	}
	if err := h.deps.Notifier.Notify(ctx, domain.Notification{Title: notifyTitle, Body: notifyBody}); err != nil {
		h.deps.Logger.Warn("notification failed", "error", err)
	}
	if err := h.deps.Windows.Show(ctx, domain.WindowMain); err != nil {
		h.deps.Logger.Debug("main window not shown", "error", err)
	}
}

func (h *Host) onInjectResult(_ context.Context, e domain.Event) {
	var o domain.InjectionOutcome
	if err := e.Decode(&o); err != nil {
		h.deps.Logger.Warn("malformed inject-result", "error", err)
		return
	}
	if o.Success {
		h.deps.Logger.Info("message injected", "run", o.Run)
		return
	}
	h.deps.Logger.Warn("message injection failed", "run", o.Run, "error", o.ErrorMessage())
}

func (h *Host) onPageLoaded(ctx context.Context, e domain.Event) {
	var loaded domain.PageLoaded
	if err := e.Decode(&loaded); err != nil {
		h.deps.Logger.Debug("malformed page-loaded", "error", err)
	}
	h.deps.Logger.Debug("page loaded", "url", loaded.URL)
	h.ApplyPageWrappers(ctx)
}

func (h *Host) onNetworkOnline(ctx context.Context, e domain.Event) {
	handler, ok := h.deps.Driver.(OnlineHandler)
	if !ok {
		return
	}
	url := gjson.GetBytes(e.Payload, "url").String()
	if err := handler.OnOnline(ctx, url); err != nil {
		h.deps.Logger.Warn("online recovery failed", "url", url, "error", err)
	}
}

func (h *Host) onNetworkOffline(_ context.Context, e domain.Event) {
	h.deps.Logger.Info("page reports offline", "url", gjson.GetBytes(e.Payload, "url").String())
}
