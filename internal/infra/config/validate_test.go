package config

import (
	"errors"
	"strings"
	"testing"

	"chatpilot/internal/domain"
)

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"browser timeout", func(c *Config) { c.Browser.Timeout = 0 }, "browser.timeout must be > 0"},
		{"window size", func(c *Config) { c.Browser.Width = 0 }, "browser.width and browser.height must be > 0"},
		{"remote url scheme", func(c *Config) { c.Browser.RemoteURL = "ftp://x" }, "browser.remote_url"},
		{"chat url", func(c *Config) { c.Site.ChatURL = "kimi.com" }, "site: chat_url"},
		{"no domains", func(c *Config) { c.Site.Domains = nil }, "site: no site domains configured"},
		{"empty chain", func(c *Config) { c.Selectors.SendButton = nil }, `selectors: selector chain "send_button" is empty`},
		{"blank selector", func(c *Config) { c.Selectors.ChatInput = []string{" "} }, `selectors: selector chain "chat_input" entry 0 is empty`},
		{"editor class", func(c *Config) { c.Selectors.EditorClass = "" }, "selectors: editor class is empty"},
		{"zero retry delay", func(c *Config) { c.Timeouts.RetryDelay = 0 }, "timeouts: retry_delay must be positive"},
		{"zero reloads", func(c *Config) { c.Timeouts.MaxReloads = 0 }, "timeouts: max_reloads must be at least 1"},
		{"retry beyond total", func(c *Config) { c.Timeouts.RetryDelay = c.Timeouts.InjectionTotal * 2 }, "retry_delay must not exceed"},
		{"strategy", func(c *Config) { c.Injection.Strategy = "magic" }, `injection.strategy "magic" is invalid`},
		{"style id", func(c *Config) { c.Injection.StyleID = "" }, "injection.style_id must not be empty"},
		{"server addr", func(c *Config) { c.Server.Addr = "nonsense" }, "server.addr"},
		{"public server", func(c *Config) { c.Server.Addr = "0.0.0.0:7823" }, "must be a loopback address"},
		{"rate limit", func(c *Config) { c.Server.RateLimitBurst = 0 }, "server.rate_limit_per_min and server.rate_limit_burst must be > 0"},
		{"notify backend", func(c *Config) { c.Notify.Backend = "pager" }, `notify.backend "pager" is invalid`},
		{"store path", func(c *Config) { c.Store.Path = "" }, "store.path must not be empty"},
		{"logger format", func(c *Config) { c.Logger.Format = "xml" }, `logger.format "xml" is invalid`},
		{"tracer exporter", func(c *Config) { c.Tracer.Enabled = true; c.Tracer.Exporter = "jaeger" }, `tracer.exporter "jaeger" is invalid`},
		{"tracer file output", func(c *Config) { c.Tracer.Enabled = true; c.Tracer.Exporter = "file" }, "tracer.output is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			assertContains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateAccumulates(t *testing.T) {
	cfg := Defaults()
	cfg.Browser.Timeout = 0
	cfg.Store.Path = ""
	cfg.Notify.Backend = "pager"

	err := Validate(cfg)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %T, want *ValidationError", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(ve.Errors), ve.Errors)
	}
	if !errors.Is(err, domain.ErrConfigLoad) {
		t.Error("validation errors should match ErrConfigLoad")
	}
}

func TestValidateSelectorsReportsInChainOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		cfg := Defaults()
		cfg.Selectors.HealthyMarker = nil
		cfg.Selectors.ChatInput = nil
		cfg.Selectors.StreamIndicator = nil

		err := Validate(cfg)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("err = %T, want *ValidationError", err)
		}
		if len(ve.Errors) != 1 || ve.Errors[0] != `selectors: selector chain "chat_input" is empty` {
			t.Fatalf("run %d: errors = %v", i, ve.Errors)
		}
	}
}

func TestValidateTracerDisabledIgnoresExporter(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Exporter = "jaeger"
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled tracer should not be validated: %v", err)
	}
}
