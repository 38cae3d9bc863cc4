package main

import (
	"context"
	"log/slog"

	"chatpilot/internal/adapter/browser"
	"chatpilot/internal/domain"
	"chatpilot/internal/infra/config"
	"chatpilot/internal/page"
	"chatpilot/internal/script"
	"chatpilot/internal/usecase"
)

// pageComponents holds the host-side state machines. They exist only for
// the driver strategy; with the script strategy everything is nil and the
// host renders content scripts instead.
type pageComponents struct {
	session *page.Session
	driver  *page.Driver
}

func initPage(ctx context.Context, cfg *config.Config, site script.SiteConfig, br *browserComponents,
	nav page.Navigator, bus domain.EventBus, log *slog.Logger) *pageComponents {
	if cfg.Strategy() != domain.StrategyDriver {
		return &pageComponents{}
	}

	loop := page.NewLoop(log)
	go loop.Run(ctx)

	session := page.NewSession(ctx, loop, site.ChatURL, log)
	driver := page.NewDriver(page.DriverDeps{
		Session: session,
		DOM:     browser.NewDOM(br.Chrome, cfg.Chains()),
		Guard:   browser.NewSessionStorage(br.Chrome),
		Nav:     nav,
		Bus:     bus,
		Site:    site,
		Profile: cfg.Profile(),
		Chains:  cfg.Chains(),
		Logger:  log,
		EmitCtx: ctx,
	})
	return &pageComponents{session: session, driver: driver}
}

// Driver returns the host-side driver, or nil for the script strategy.
func (p *pageComponents) Driver() usecase.PageDriver {
	if p.driver == nil {
		return nil
	}
	return p.driver
}

// Observers returns the page observers the relay feeds.
func (p *pageComponents) Observers() []browser.PageObserver {
	if p.session == nil {
		return nil
	}
	return []browser.PageObserver{browser.SessionObserver{Session: p.session}}
}

func (p *pageComponents) Close() {
	if p.session != nil {
		p.session.Close()
	}
}
