package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"chatpilot/internal/adapter/notify"
	"chatpilot/internal/adapter/server"
	"chatpilot/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Chrome", Fn: checkChrome},
		{Name: "Data directory", Fn: checkDataDir},
		{Name: "Notifications", Fn: checkNotifications},
		{Name: "Local server", Fn: checkLocalServer},
		{Name: "Network", Fn: checkNetwork},
	}

	fmt.Println("chatpilot doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Println("\nFix the FAIL issues above to ensure chatpilot runs correctly.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Println("\nchatpilot should work, but consider addressing the warnings.")
	} else {
		fmt.Println("\nAll checks passed! chatpilot is ready to run.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile returns a check for the config file. A missing file is
// only a warning because the defaults are complete.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     fmt.Sprintf("Fix %s or remove it to run with defaults", cfgPath),
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
				Fix:     "Create config.yaml or pass --config PATH to customize",
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

var chromeBinaries = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}

// checkChrome verifies that a Chrome binary can be found, unless the host
// attaches to a running browser.
func checkChrome(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	if cfg.Browser.RemoteURL != "" {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("attaching to running Chrome at %s", cfg.Browser.RemoteURL),
		}
	}
	if p := cfg.Browser.ExecPath; p != "" {
		if _, err := os.Stat(p); err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("browser.exec_path %s not found", p),
				Fix:     "Point browser.exec_path at a Chrome or Chromium binary",
			}
		}
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("using %s", p)}
	}
	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return CheckResult{
				Status:  StatusPass,
				Message: fmt.Sprintf("found %s at %s", name, path),
			}
		}
	}
	return CheckResult{
		Status:  StatusFail,
		Message: "Chrome not found",
		Fix:     "Install Chrome or Chromium, or set browser.exec_path",
	}
}

// checkDataDir verifies the settings store directory is writable.
func checkDataDir(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	dir, _ := filepath.Abs(filepath.Dir(cfg.Store.Path))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("data directory %s cannot be created: %v", dir, err),
			Fix:     fmt.Sprintf("Create the directory: mkdir -p %s", dir),
		}
	}
	tmp, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("data directory %s is not writable: %v", dir, err),
			Fix:     fmt.Sprintf("Fix permissions: chmod u+w %s", dir),
		}
	}
	tmp.Close()
	os.Remove(tmp.Name())
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("data directory %s is writable", dir)}
}

// checkNotifications reports whether the configured backend is reachable.
func checkNotifications(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusWarn, Message: "cannot check, config not loaded"}
	}
	if cfg.Notify.Backend != "dbus" {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("backend is %q, no desktop bus required", cfg.Notify.Backend),
		}
	}
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	n, closer, err := notify.New(cfg.Notify.Backend, cfg.Notify.AppName, cfg.Notify.MinInterval, discard)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	defer closer()
	if _, ok := n.(*notify.DBus); !ok {
		return CheckResult{
			Status:  StatusWarn,
			Message: "D-Bus session bus unreachable, notifications go to the log",
			Fix:     "Run inside a desktop session or set notify.backend: log",
		}
	}
	return CheckResult{Status: StatusPass, Message: "D-Bus notification service reachable"}
}

// checkLocalServer verifies the local server address is free or already
// served by a running instance.
func checkLocalServer(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if server.NewClient("http://" + cfg.Server.Addr).Alive(ctx) {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("chatpilot is running on %s", cfg.Server.Addr),
		}
	}
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s is in use by another program", cfg.Server.Addr),
			Fix:     "Set server.addr to a free loopback port",
		}
	}
	ln.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s is free", cfg.Server.Addr)}
}

// checkNetwork verifies the chat site is reachable over TCP.
func checkNetwork(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusWarn, Message: "cannot check, config not loaded"}
	}
	addr, err := dialAddr(cfg.Site.ChatURL)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error(), Fix: "Set site.chat_url to an absolute URL"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("cannot reach %s; the offline view will be shown", addr),
			Fix:     "Check your network connection and firewall settings",
		}
	}
	conn.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s reachable", addr)}
}

// dialAddr returns host:port for an http(s) URL.
func dialAddr(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid chat URL %q", rawURL)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
