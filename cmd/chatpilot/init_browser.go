package main

import (
	"context"
	"log/slog"

	"chatpilot/internal/adapter/browser"
	"chatpilot/internal/domain"
	"chatpilot/internal/infra/config"
)

// browserComponents holds Chrome and the window manager built on its tab.
type browserComponents struct {
	Chrome  *browser.Chrome
	Windows *browser.Windows
	logger  *slog.Logger
}

func initBrowser(cfg *config.Config, log *slog.Logger) (*browserComponents, error) {
	chrome, err := browser.Launch(browser.Config{
		RemoteURL:   cfg.Browser.RemoteURL,
		Headless:    cfg.Browser.Headless,
		ExecPath:    cfg.Browser.ExecPath,
		UserDataDir: cfg.Browser.UserDataDir,
		Timeout:     cfg.Browser.Timeout,
		Width:       cfg.Browser.Width,
		Height:      cfg.Browser.Height,
	}, log)
	if err != nil {
		return nil, err
	}
	windows := browser.NewWindows(browser.NewChromeWindow(chrome, log), log)
	return &browserComponents{Chrome: chrome, Windows: windows, logger: log}, nil
}

// InstallRelay connects the page bridge to the bus and the host.
func (b *browserComponents) InstallRelay(ctx context.Context, bus domain.EventBus, invoker browser.Invoker, observers ...browser.PageObserver) error {
	relay := browser.NewRelay(ctx, bus, invoker, b.logger, observers...)
	return relay.Install(ctx, b.Chrome)
}

func (b *browserComponents) Close() {
	if err := b.Chrome.Close(); err != nil {
		b.logger.Debug("chrome close", "error", err)
	}
}
