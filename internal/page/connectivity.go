package page

import (
	"context"
	"log/slog"
	"strings"

	"chatpilot/internal/script"
)

// Classify reports whether the page looks like an error page rather than
// the working application.
func Classify(s PageSignals) bool {
	title := strings.ToLower(s.Title)
	return !s.Online ||
		strings.Contains(title, "error") ||
		strings.Contains(title, "not found") ||
		s.Title == "" ||
		(s.HasBody && s.BodyTextLen < script.MinBodyText && !s.HealthyMarker)
}

// Action is the connectivity decision for one page load.
type Action int

const (
	// ActionRecord only records service-worker state.
	ActionRecord Action = iota
	// ActionRecover consults the reload guard: reload or go offline.
	ActionRecover
	// ActionOffline navigates straight to the offline view.
	ActionOffline
)

func (a Action) String() string {
	switch a {
	case ActionRecord:
		return "record"
	case ActionRecover:
		return "recover"
	case ActionOffline:
		return "offline"
	}
	return "unknown"
}

// Decide maps the page classification to an action. local means the tab is
// already showing the host's own pages.
func Decide(errorPage, local, workerRegistered bool) Action {
	switch {
	case !errorPage || local:
		return ActionRecord
	case workerRegistered:
		return ActionRecover
	default:
		return ActionOffline
	}
}

// Navigator is the slice of the host the connectivity heuristic drives.
type Navigator interface {
	NavigateToOffline(ctx context.Context) error
	NavigateToChat(ctx context.Context) error
}

// Connectivity runs the one-shot error-page heuristic on each page load and
// reacts to the browser's online transition.
type Connectivity struct {
	dom     DOM
	guard   ReloadGuard
	nav     Navigator
	site    script.SiteConfig
	profile script.TimeoutProfile
	chains  script.Chains
	logger  *slog.Logger

	// spawn runs host navigation off the page loop; navigating away tears
	// the current load down.
	spawn func(func())
}

// NewConnectivity creates the heuristic.
func NewConnectivity(dom DOM, guard ReloadGuard, nav Navigator, site script.SiteConfig,
	profile script.TimeoutProfile, chains script.Chains, logger *slog.Logger) *Connectivity {
	return &Connectivity{
		dom: dom, guard: guard, nav: nav, site: site,
		profile: profile, chains: chains, logger: logger,
		spawn: func(fn func()) { go fn() },
	}
}

// Start schedules the check for the load after the configured delay.
func (c *Connectivity) Start(load *Load) {
	load.AfterFunc(c.profile.ConnectivityDelay, func() { c.Check(load) })
}

// Check classifies the page and acts on the result. It returns the action
// taken; a recovery that exhausted the reload guard reports ActionOffline.
func (c *Connectivity) Check(load *Load) Action {
	ctx := load.Context()
	signals, err := c.dom.Signals(ctx, c.chains.HealthyMarker)
	if err != nil {
		c.logger.Warn("connectivity signals unavailable", "load", load.ID(), "error", err)
		return ActionRecord
	}
	if signals.URL == "" {
		signals.URL = load.URL()
	}

	errorPage := Classify(signals)
	local := c.site.IsLocal(signals.URL)

	registered, swErr := c.dom.ServiceWorkerRegistered(ctx)
	if swErr != nil {
		c.logger.Debug("service worker check failed", "error", swErr)
		registered = false
	}

	action := Decide(errorPage, local, registered)
	c.logger.Debug("connectivity check",
		"load", load.ID(),
		"url", signals.URL,
		"error_page", errorPage,
		"service_worker", registered,
		"action", action,
	)

	switch action {
	case ActionRecord:
		if !local {
			if err := c.guard.Reset(ctx); err != nil {
				c.logger.Debug("reload guard reset failed", "error", err)
			}
		}
	case ActionRecover:
		reload, err := c.guard.Strike(ctx)
		if err != nil {
			c.logger.Warn("reload guard unavailable", "error", err)
			reload = false
		}
		if reload {
			c.logger.Info("error page with service worker, reloading", "url", signals.URL)
			if err := c.dom.Reload(ctx); err != nil {
				c.logger.Warn("reload failed", "error", err)
			}
			return action
		}
		c.goOffline(ctx)
		return ActionOffline
	case ActionOffline:
		c.goOffline(ctx)
	}
	return action
}

func (c *Connectivity) goOffline(ctx context.Context) {
	c.logger.Info("page unreachable, showing offline view")
	navCtx := context.WithoutCancel(ctx)
	c.spawn(func() {
		if err := c.nav.NavigateToOffline(navCtx); err != nil {
			c.logger.Warn("navigate to offline view failed", "error", err)
		}
	})
}

// OnOnline reloads the page when it belongs to the application and
// otherwise returns to the chat.
func (c *Connectivity) OnOnline(ctx context.Context, currentURL string) error {
	if c.site.OnSiteDomain(currentURL) {
		c.logger.Info("back online, reloading", "url", currentURL)
		return c.dom.Reload(ctx)
	}
	c.logger.Info("back online, returning to chat", "url", currentURL)
	return c.nav.NavigateToChat(ctx)
}

// OnOffline only records the transition. Recovery is left to the next check
// or the online handler.
func (c *Connectivity) OnOffline(currentURL string) {
	c.logger.Info("browser went offline", "url", currentURL)
}
