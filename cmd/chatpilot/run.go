package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatpilot/internal/adapter/notify"
	"chatpilot/internal/adapter/opener"
	"chatpilot/internal/adapter/server"
	"chatpilot/internal/adapter/store"
	"chatpilot/internal/adapter/tui/launcher"
	"chatpilot/internal/domain"
	"chatpilot/internal/infra/config"
	"chatpilot/internal/infra/logger"
	"chatpilot/internal/infra/tracer"
	"chatpilot/internal/usecase"
	"chatpilot/internal/usecase/eventbus"
)

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. A second launch hands over to the running instance.
	ctx := context.Background()
	if forwardToRunning(ctx, cfg) {
		fmt.Println("chatpilot is already running; brought its window forward.")
		return nil
	}

	// 3. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 4. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 5. Settings store
	kv, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer kv.Close()
	settings, err := usecase.NewSettingsService(kv, log)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}

	// 6. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 7. Local server address; the offline view lives on this origin.
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", cfg.Server.Addr, err)
	}
	site := cfg.SiteFor("http://" + ln.Addr().String())

	// 8. Browser
	br, err := initBrowser(cfg, log)
	if err != nil {
		ln.Close()
		return fmt.Errorf("browser: %w", err)
	}
	defer br.Close()
	go func() {
		select {
		case <-br.Chrome.Done():
			log.Info("browser closed, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	// 9. Desktop integration
	notifier, notifyCloser, err := notify.New(cfg.Notify.Backend, cfg.Notify.AppName, cfg.Notify.MinInterval, log)
	if err != nil {
		ln.Close()
		return fmt.Errorf("notify: %w", err)
	}
	defer notifyCloser()

	// 10. Host and the injection strategy
	nav := &hostNavigator{}
	pg := initPage(ctx, cfg, site, br, nav, bus, log)
	defer pg.Close()

	host := usecase.NewHost(usecase.HostDeps{
		Windows:       br.Windows,
		Scripts:       br.Windows,
		Driver:        pg.Driver(),
		Settings:      settings,
		Bus:           bus,
		Notifier:      notifier,
		Opener:        opener.New(log),
		Site:          site,
		Profile:       cfg.Profile(),
		Chains:        cfg.Chains(),
		Logger:        log,
		StyleID:       cfg.Injection.StyleID,
		HeaderPadding: cfg.Injection.HeaderPadding,
	})
	nav.host = host
	host.Start()
	defer host.Stop()

	// 11. Local server
	srv := server.New(server.Options{
		Addr:            cfg.Server.Addr,
		RateLimitPerMin: cfg.Server.RateLimitPerMin,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
	}, host, settings, log)
	srv.Serve(ctx, ln)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	// 12. Page bridge, then the first navigation
	if err := br.InstallRelay(ctx, bus, host, pg.Observers()...); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	if err := br.Windows.Navigate(ctx, domain.WindowMain, site.ChatURL); err != nil {
		log.Warn("initial navigation failed", "url", site.ChatURL, "error", err)
	}

	// 13. Launcher
	l := launcher.New(launcher.ModelDeps{
		Commands: host,
		Logger:   log,
	}, bus)
	br.Windows.Observe(l.OnVisibility)

	log.Info("chatpilot starting",
		"chat_url", site.ChatURL,
		"strategy", cfg.Strategy(),
		"server", srv.Origin(),
		"notify", cfg.Notify.Backend,
	)
	if err := l.Run(ctx); err != nil {
		return fmt.Errorf("launcher: %w", err)
	}
	log.Info("chatpilot stopped")
	return nil
}

// forwardToRunning asks an instance already serving on the configured
// address to show its main window.
func forwardToRunning(ctx context.Context, cfg *config.Config) bool {
	client := server.NewClient("http://" + cfg.Server.Addr)
	if !client.Alive(ctx) {
		return false
	}
	if err := client.ShowMain(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "running instance did not respond: %v\n", err)
	}
	return true
}

// hostNavigator lets the driver-mode connectivity monitor reach the host,
// which is built after the driver.
type hostNavigator struct {
	host *usecase.Host
}

func (n *hostNavigator) NavigateToOffline(ctx context.Context) error {
	if n.host == nil {
		return domain.NewDomainError("hostNavigator.NavigateToOffline", domain.ErrNavigation, "host not started")
	}
	return n.host.NavigateToOffline(ctx)
}

func (n *hostNavigator) NavigateToChat(ctx context.Context) error {
	if n.host == nil {
		return domain.NewDomainError("hostNavigator.NavigateToChat", domain.ErrNavigation, "host not started")
	}
	return n.host.NavigateToChat(ctx)
}
