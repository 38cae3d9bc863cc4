package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"chatpilot/internal/domain"
	"chatpilot/internal/security"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// Unwrap lets callers match ErrConfigLoad.
func (v *ValidationError) Unwrap() error { return domain.ErrConfigLoad }

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateBrowser(cfg, ve)
	validateSite(cfg, ve)
	validateSelectors(cfg, ve)
	validateTimeouts(cfg, ve)
	validateInjection(cfg, ve)
	validateServer(cfg, ve)
	validateNotify(cfg, ve)
	validateStore(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateBrowser(cfg *Config, ve *ValidationError) {
	if cfg.Browser.Timeout <= 0 {
		ve.Add("browser.timeout must be > 0")
	}
	if cfg.Browser.Width <= 0 || cfg.Browser.Height <= 0 {
		ve.Add("browser.width and browser.height must be > 0")
	}
	if cfg.Browser.RemoteURL != "" &&
		!strings.HasPrefix(cfg.Browser.RemoteURL, "ws://") &&
		!strings.HasPrefix(cfg.Browser.RemoteURL, "http://") {
		ve.Add("browser.remote_url must be a ws:// or http:// DevTools endpoint")
	}
}

func validateSite(cfg *Config, ve *ValidationError) {
	// LocalOrigin is only known once the server listens; any loopback
	// origin satisfies the site checks.
	if err := cfg.SiteFor("http://127.0.0.1").Validate(); err != nil {
		ve.Add("site: %s", detail(err))
	}
}

func validateSelectors(cfg *Config, ve *ValidationError) {
	if err := cfg.Chains().Validate(); err != nil {
		ve.Add("selectors: %s", detail(err))
	}
}

func validateTimeouts(cfg *Config, ve *ValidationError) {
	if err := cfg.Profile().Validate(); err != nil {
		ve.Add("timeouts: %s", detail(err))
	}
	if cfg.Timeouts.InjectionTotal > 0 && cfg.Timeouts.RetryDelay > cfg.Timeouts.InjectionTotal {
		ve.Add("timeouts.retry_delay must not exceed timeouts.injection_total")
	}
}

func validateInjection(cfg *Config, ve *ValidationError) {
	switch cfg.Strategy() {
	case domain.StrategyScript, domain.StrategyDriver:
	default:
		ve.Add("injection.strategy %q is invalid (want script or driver)", cfg.Injection.Strategy)
	}
	if cfg.Injection.StyleID == "" {
		ve.Add("injection.style_id must not be empty")
	}
}

func validateServer(cfg *Config, ve *ValidationError) {
	host, _, err := net.SplitHostPort(cfg.Server.Addr)
	if err != nil {
		ve.Add("server.addr %q is invalid: %v", cfg.Server.Addr, err)
		return
	}
	if !security.IsLoopbackAddr(host) {
		ve.Add("server.addr %q must be a loopback address", cfg.Server.Addr)
	}
	if cfg.Server.RateLimitPerMin <= 0 || cfg.Server.RateLimitBurst <= 0 {
		ve.Add("server.rate_limit_per_min and server.rate_limit_burst must be > 0")
	}
}

var validNotifyBackends = map[string]bool{"dbus": true, "log": true, "none": true}

func validateNotify(cfg *Config, ve *ValidationError) {
	if !validNotifyBackends[cfg.Notify.Backend] {
		ve.Add("notify.backend %q is invalid (want dbus, log or none)", cfg.Notify.Backend)
	}
	if cfg.Notify.MinInterval < 0 {
		ve.Add("notify.min_interval must be >= 0")
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	if cfg.Store.Path == "" {
		ve.Add("store.path must not be empty")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want text or json)", cfg.Logger.Format)
	}
	if cfg.Logger.MaxSizeMB < 0 || cfg.Logger.MaxBackups < 0 || cfg.Logger.MaxAgeDays < 0 {
		ve.Add("logger rotation limits must be >= 0")
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	case "file":
		if cfg.Tracer.Output == "" {
			ve.Add("tracer.output is required for the file exporter")
		}
	default:
		ve.Add("tracer.exporter %q is invalid (want noop, stdout or file)", cfg.Tracer.Exporter)
	}
}

// detail returns the DomainError detail when there is one.
func detail(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}
