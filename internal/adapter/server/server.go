// Package server is the loopback HTTP surface of chatpilot: the offline view
// loaded into the main tab and the control API used by second instances and
// shortcut daemons.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"chatpilot/internal/domain"
	"chatpilot/internal/infra/middleware"
)

// Controller is the host command surface the API exposes.
type Controller interface {
	SubmitMessage(ctx context.Context, req domain.InjectionRequest) (string, error)
	ToggleLauncher(ctx context.Context) error
	ShowMainWindow(ctx context.Context) error
	GetSettings(ctx context.Context) (domain.AppSettings, error)
	SaveSettings(ctx context.Context, s domain.AppSettings) error
}

// SettingsDecoder strictly decodes a settings document.
type SettingsDecoder interface {
	Decode(raw json.RawMessage) (domain.AppSettings, error)
}

// Options configures a Server.
type Options struct {
	Addr            string
	RateLimitPerMin int
	RateLimitBurst  int
}

// Server serves the offline view and the control API on loopback.
type Server struct {
	opts     Options
	ctrl     Controller
	settings SettingsDecoder
	logger   *slog.Logger

	server    *http.Server
	boundAddr string
	cancel    context.CancelFunc
}

// New creates a Server. Nothing listens until Start.
func New(opts Options, ctrl Controller, settings SettingsDecoder, logger *slog.Logger) *Server {
	return &Server{opts: opts, ctrl: ctrl, settings: settings, logger: logger}
}

// Router builds the chi router. limiterCtx bounds the rate limiter's
// cleanup goroutine.
func (s *Server) Router(limiterCtx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.LoopbackOnly(s.logger))

	r.Get("/offline.html", serveStatic("offline.html", "text/html; charset=utf-8"))
	r.Get("/offline.js", serveStatic("offline.js", "text/javascript; charset=utf-8"))
	r.Get("/offline.css", serveStatic("offline.css", "text/css; charset=utf-8"))
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(limiterCtx, s.opts.RateLimitPerMin, s.opts.RateLimitBurst))
		r.Post("/launcher/toggle", s.handleToggleLauncher)
		r.Post("/main/show", s.handleShowMain)
		r.Post("/submit", s.handleSubmit)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
	})
	return r
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	s.Serve(ctx, ln)
	return nil
}

// Serve serves on an already bound listener in the background. Binding
// first lets callers learn the origin before the controller exists.
func (s *Server) Serve(ctx context.Context, ln net.Listener) {
	limiterCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.boundAddr = ln.Addr().String()

	s.server = &http.Server{
		Handler:           s.Router(limiterCtx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		s.logger.Info("local server started", "addr", s.boundAddr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("local server error", "error", err)
		}
	}()
}

// Origin is the scheme and bound address, e.g. http://127.0.0.1:7823.
func (s *Server) Origin() string {
	if s.boundAddr == "" {
		return "http://" + s.opts.Addr
	}
	return "http://" + s.boundAddr
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
