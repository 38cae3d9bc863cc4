// Package browser drives the Chrome tab that hosts the chat application. It
// implements the window, script and DOM ports over the DevTools protocol.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatpilot/internal/domain"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// Config holds configuration for the Chrome process.
type Config struct {
	// RemoteURL is the CDP WebSocket endpoint for connecting to a running
	// Chrome. If empty, a local Chrome instance is launched.
	RemoteURL string
	// Headless controls whether a locally launched Chrome runs headless.
	Headless bool
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	// UserDataDir keeps cookies and the site's service worker across runs.
	UserDataDir string
	// Timeout bounds each CDP round trip.
	Timeout time.Duration
	Width   int
	Height  int
}

// Chrome owns the browser process and the main tab.
type Chrome struct {
	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabCtx        context.Context
	tabCancel     context.CancelFunc
	targetID      target.ID
	timeout       time.Duration
	logger        *slog.Logger
	closed        bool
}

// Launch starts (or attaches to) Chrome and opens the main tab.
func Launch(cfg Config, logger *slog.Logger) (*Chrome, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 1100, 800
	}

	c := &Chrome{timeout: cfg.Timeout, logger: logger}

	var allocCtx context.Context
	if cfg.RemoteURL != "" {
		allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		logger.Info("chromedp connecting to remote browser", "url", cfg.RemoteURL)
	} else {
		// Copy default options to avoid mutating the package-level slice.
		opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
		copy(opts, chromedp.DefaultExecAllocatorOptions[:])
		opts = append(opts,
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", cfg.Headless),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(cfg.Width, cfg.Height),
		)
		if cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
		}
		if cfg.UserDataDir != "" {
			opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
		}
		allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		logger.Info("chromedp launching local browser", "headless", cfg.Headless, "profile", cfg.UserDataDir)
	}

	c.browserCtx, c.browserCancel = chromedp.NewContext(allocCtx)
	c.tabCtx, c.tabCancel = chromedp.NewContext(c.browserCtx)

	// chromedp binds the CDP session to the context of the first Run, so it
	// must be the tab context itself and not a derived timeout context.
	startDone := make(chan error, 1)
	go func() { startDone <- chromedp.Run(c.tabCtx) }()
	select {
	case err := <-startDone:
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-time.After(cfg.Timeout):
		c.Close()
		return nil, fmt.Errorf("start browser: timed out after %v", cfg.Timeout)
	}

	c.targetID = chromedp.FromContext(c.tabCtx).Target.TargetID
	logger.Info("chromedp browser started", "target", c.targetID)
	return c, nil
}

// TargetID identifies the main tab.
func (c *Chrome) TargetID() target.ID { return c.targetID }

// Done is closed when the main tab or the browser goes away.
func (c *Chrome) Done() <-chan struct{} { return c.tabCtx.Done() }

// Run executes actions against the main tab with the per-call timeout. The
// call is also abandoned when ctx is cancelled.
func (c *Chrome) Run(ctx context.Context, actions ...chromedp.Action) error {
	return c.run(ctx, c.tabCtx, actions...)
}

// RunBrowser executes browser-level actions such as window bounds.
func (c *Chrome) RunBrowser(ctx context.Context, actions ...chromedp.Action) error {
	return c.run(ctx, c.browserCtx, actions...)
}

func (c *Chrome) run(ctx, base context.Context, actions ...chromedp.Action) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed || base.Err() != nil {
		return domain.ErrBrowserClosed
	}

	tctx, cancel := context.WithTimeout(base, c.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

// Eval evaluates expr in the main tab and decodes the result into out. A nil
// out discards the result.
func (c *Chrome) Eval(ctx context.Context, expr string, out any) error {
	return c.Run(ctx, chromedp.Evaluate(expr, out))
}

// EvalAsync is Eval for expressions that produce a promise.
func (c *Chrome) EvalAsync(ctx context.Context, expr string, out any) error {
	return c.Run(ctx, chromedp.Evaluate(expr, out, awaitPromise))
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// Reload reloads the main tab without waiting for the load event.
func (c *Chrome) Reload(ctx context.Context) error {
	return c.Run(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		return cdppage.Reload().Do(actx)
	}))
}

// Listen registers fn for every CDP event of the main tab. fn must not block.
func (c *Chrome) Listen(fn func(ev any)) {
	chromedp.ListenTarget(c.tabCtx, fn)
}

// Close releases the tab, the browser and the allocator.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.tabCancel != nil {
		c.tabCancel()
	}
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	c.logger.Info("chromedp browser closed")
	return nil
}
