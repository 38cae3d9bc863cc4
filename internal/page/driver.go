package page

import (
	"context"
	"log/slog"

	"chatpilot/internal/domain"
	"chatpilot/internal/script"
)

// Driver runs the page state machines host-side for the current page load
// of a Session. It is the driver injection strategy.
type Driver struct {
	session      *Session
	injector     *Injector
	watcher      *Watcher
	connectivity *Connectivity
	logger       *slog.Logger
}

// DriverDeps are the collaborators of a Driver.
type DriverDeps struct {
	Session *Session
	DOM     DOM
	Guard   GuardStore
	Nav     Navigator
	Bus     domain.EventBus
	Site    script.SiteConfig
	Profile script.TimeoutProfile
	Chains  script.Chains
	Logger  *slog.Logger
	EmitCtx context.Context
}

// NewDriver wires the state machines so that their outcomes are published on
// the bus on the same channels the content scripts use.
func NewDriver(d DriverDeps) *Driver {
	emitCtx := d.EmitCtx
	if emitCtx == nil {
		emitCtx = context.Background()
	}
	emit := func(ch domain.Channel, payload any) {
		if err := d.Bus.Emit(emitCtx, ch, payload); err != nil {
			d.Logger.Warn("emit failed", "channel", ch, "error", err)
		}
	}
	guard := ReloadGuard{Store: d.Guard, Key: d.Site.ReloadKey, MaxReloads: d.Profile.MaxReloads}
	return &Driver{
		session: d.Session,
		injector: NewInjector(d.DOM, d.Profile, d.Chains, func(o domain.InjectionOutcome) {
			emit(domain.ChannelInjectResult, o)
		}, d.Logger),
		watcher: NewWatcher(d.DOM, d.Profile, d.Chains, func() {
			emit(domain.ChannelResponseComplete, struct{}{})
		}, d.Logger),
		connectivity: NewConnectivity(d.DOM, guard, d.Nav, d.Site, d.Profile, d.Chains, d.Logger),
		logger:       d.Logger,
	}
}

// Inject starts an injection run on the current page load.
func (d *Driver) Inject(_ context.Context, req domain.InjectionRequest, runID string) error {
	d.injector.Start(d.session.Current(), req, runID)
	return nil
}

// Watch starts the response watcher on the current page load. A watcher
// already running on the load makes this a no-op.
func (d *Driver) Watch(_ context.Context) error {
	d.watcher.Start(d.session.Current())
	return nil
}

// MonitorConnectivity schedules the error-page check for the current load.
func (d *Driver) MonitorConnectivity(_ context.Context) error {
	d.connectivity.Start(d.session.Current())
	return nil
}

// OnOnline forwards the browser's online transition.
func (d *Driver) OnOnline(ctx context.Context, currentURL string) error {
	return d.connectivity.OnOnline(ctx, currentURL)
}

// OnOffline forwards the browser's offline transition.
func (d *Driver) OnOffline(currentURL string) {
	d.connectivity.OnOffline(currentURL)
}
