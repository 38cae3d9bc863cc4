package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chatpilot/internal/domain"
	"chatpilot/internal/script"
)

// Config is the top-level application configuration.
type Config struct {
	Browser   BrowserConfig   `yaml:"browser"`
	Site      SiteConfig      `yaml:"site"`
	Selectors SelectorsConfig `yaml:"selectors"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Injection InjectionConfig `yaml:"injection"`
	Server    ServerConfig    `yaml:"server"`
	Notify    NotifyConfig    `yaml:"notify"`
	Store     StoreConfig     `yaml:"store"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
	Includes  []string        `yaml:"includes,omitempty"`
}

// BrowserConfig controls how Chrome is launched or attached to.
type BrowserConfig struct {
	RemoteURL   string        `yaml:"remote_url"` // attach to a running Chrome instead of launching one
	Headless    bool          `yaml:"headless"`
	ExecPath    string        `yaml:"exec_path"`
	UserDataDir string        `yaml:"user_data_dir"`
	Timeout     time.Duration `yaml:"timeout"`
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
}

// SiteConfig names the chat application.
type SiteConfig struct {
	ChatURL   string   `yaml:"chat_url"`
	BotURL    string   `yaml:"bot_url"`
	Domains   []string `yaml:"domains"`
	ReloadKey string   `yaml:"reload_key"`
}

// SelectorsConfig overrides the selector chains. Each chain is tried in order.
type SelectorsConfig struct {
	ChatInput       []string `yaml:"chat_input"`
	AnyTextarea     []string `yaml:"any_textarea"`
	SendButton      []string `yaml:"send_button"`
	StreamIndicator []string `yaml:"stream_indicator"`
	HealthyMarker   []string `yaml:"healthy_marker"`
	EditorClass     string   `yaml:"editor_class"`
}

// TimeoutsConfig holds the page automation delays and bounds.
type TimeoutsConfig struct {
	RetryDelay        time.Duration `yaml:"retry_delay"`
	InjectionTotal    time.Duration `yaml:"injection_total"`
	PageLoadFallback  time.Duration `yaml:"page_load_fallback"`
	SettleDelay       time.Duration `yaml:"settle_delay"`
	FocusDelay        time.Duration `yaml:"focus_delay"`
	SubmitDelay       time.Duration `yaml:"submit_delay"`
	ConnectivityDelay time.Duration `yaml:"connectivity_delay"`
	WatcherInterval   time.Duration `yaml:"watcher_interval"`
	WatcherInitial    time.Duration `yaml:"watcher_initial"`
	PageLoadWait      time.Duration `yaml:"page_load_wait"`
	BotPageLoadWait   time.Duration `yaml:"bot_page_load_wait"`
	WindowVisible     time.Duration `yaml:"window_visible"`
	OfflineSettle     time.Duration `yaml:"offline_settle"`
	MaxRetries        int           `yaml:"max_retries"`
	MaxWatcherChecks  int           `yaml:"max_watcher_checks"`
	MaxReloads        int           `yaml:"max_reloads"`
}

// InjectionConfig selects where the page state machines run.
type InjectionConfig struct {
	Strategy      string `yaml:"strategy"` // "script" or "driver"
	StyleID       string `yaml:"style_id"`
	HeaderPadding string `yaml:"header_padding"`
}

// ServerConfig holds the local server settings. The address must be loopback.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	RateLimitBurst  int    `yaml:"rate_limit_burst"`
}

// NotifyConfig holds desktop notification settings.
type NotifyConfig struct {
	Backend     string        `yaml:"backend"` // "dbus", "log" or "none"
	AppName     string        `yaml:"app_name"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// StoreConfig holds the settings store location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggerConfig holds logging settings. File outputs rotate at MaxSizeMB.
type LoggerConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "noop", "stdout" or "file"
	Output   string `yaml:"output"`   // file exporter path
}

// defaultDataDir returns the persistent data directory under $HOME/.chatpilot.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".chatpilot")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	dataDir := defaultDataDir()
	site := script.DefaultSite()
	chains := script.DefaultChains()
	p := script.DefaultProfile()
	return &Config{
		Browser: BrowserConfig{
			Headless:    false,
			UserDataDir: filepath.Join(dataDir, "chrome-profile"),
			Timeout:     30 * time.Second,
			Width:       1000,
			Height:      700,
		},
		Site: SiteConfig{
			ChatURL:   site.ChatURL,
			BotURL:    site.BotURL,
			Domains:   site.Domains,
			ReloadKey: site.ReloadKey,
		},
		Selectors: SelectorsConfig{
			ChatInput:       chains.ChatInput,
			AnyTextarea:     chains.AnyTextarea,
			SendButton:      chains.SendButton,
			StreamIndicator: chains.StreamIndicator,
			HealthyMarker:   chains.HealthyMarker,
			EditorClass:     chains.EditorClass,
		},
		Timeouts: TimeoutsConfig{
			RetryDelay:        p.RetryDelay,
			InjectionTotal:    p.InjectionTotal,
			PageLoadFallback:  p.PageLoadFallback,
			SettleDelay:       p.SettleDelay,
			FocusDelay:        p.FocusDelay,
			SubmitDelay:       p.SubmitDelay,
			ConnectivityDelay: p.ConnectivityDelay,
			WatcherInterval:   p.WatcherInterval,
			WatcherInitial:    p.WatcherInitial,
			PageLoadWait:      p.PageLoadWait,
			BotPageLoadWait:   p.BotPageLoadWait,
			WindowVisible:     p.WindowVisible,
			OfflineSettle:     p.OfflineSettle,
			MaxRetries:        p.MaxRetries,
			MaxWatcherChecks:  p.MaxWatcherChecks,
			MaxReloads:        p.MaxReloads,
		},
		Injection: InjectionConfig{
			Strategy:      string(domain.StrategyScript),
			StyleID:       "kimi-custom-styles",
			HeaderPadding: "2.5rem",
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:7823",
			RateLimitPerMin: 120,
			RateLimitBurst:  20,
		},
		Notify: NotifyConfig{
			Backend:     "dbus",
			AppName:     "chatpilot",
			MinInterval: 2 * time.Second,
		},
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "settings.db"),
		},
		Logger: LoggerConfig{
			Level:      "info",
			Format:     "text",
			Output:     filepath.Join(dataDir, "chatpilot.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, merges its includes and applies env var
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// First pass: unmarshal to get the includes list.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}
		// Second pass: the main file takes precedence over its includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps CHATPILOT_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	str("CHATPILOT_BROWSER_REMOTE_URL", &cfg.Browser.RemoteURL)
	str("CHATPILOT_BROWSER_EXEC_PATH", &cfg.Browser.ExecPath)
	str("CHATPILOT_BROWSER_USER_DATA_DIR", &cfg.Browser.UserDataDir)
	if v := os.Getenv("CHATPILOT_BROWSER_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}
	str("CHATPILOT_SITE_CHAT_URL", &cfg.Site.ChatURL)
	str("CHATPILOT_SITE_BOT_URL", &cfg.Site.BotURL)
	if v := os.Getenv("CHATPILOT_SITE_DOMAINS"); v != "" {
		cfg.Site.Domains = splitAndTrim(v, ",")
	}
	str("CHATPILOT_INJECTION_STRATEGY", &cfg.Injection.Strategy)
	str("CHATPILOT_SERVER_ADDR", &cfg.Server.Addr)
	str("CHATPILOT_NOTIFY_BACKEND", &cfg.Notify.Backend)
	str("CHATPILOT_STORE_PATH", &cfg.Store.Path)
	str("CHATPILOT_LOGGER_LEVEL", &cfg.Logger.Level)
	str("CHATPILOT_LOGGER_FORMAT", &cfg.Logger.Format)
	str("CHATPILOT_LOGGER_OUTPUT", &cfg.Logger.Output)
	if v := os.Getenv("CHATPILOT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	str("CHATPILOT_TRACER_EXPORTER", &cfg.Tracer.Exporter)
	str("CHATPILOT_TRACER_OUTPUT", &cfg.Tracer.Output)
	if v := os.Getenv("CHATPILOT_TIMEOUTS_MAX_RELOADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timeouts.MaxReloads = n
		}
	}
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}

// SiteFor returns the site description with the local server origin filled in.
func (c *Config) SiteFor(localOrigin string) script.SiteConfig {
	return script.SiteConfig{
		ChatURL:     c.Site.ChatURL,
		BotURL:      c.Site.BotURL,
		Domains:     append([]string(nil), c.Site.Domains...),
		LocalOrigin: localOrigin,
		ReloadKey:   c.Site.ReloadKey,
	}
}

// Chains returns the configured selector chains.
func (c *Config) Chains() script.Chains {
	s := c.Selectors
	return script.Chains{
		ChatInput:       script.SelectorChain(s.ChatInput),
		AnyTextarea:     script.SelectorChain(s.AnyTextarea),
		SendButton:      script.SelectorChain(s.SendButton),
		StreamIndicator: script.SelectorChain(s.StreamIndicator),
		HealthyMarker:   script.SelectorChain(s.HealthyMarker),
		EditorClass:     s.EditorClass,
	}
}

// Profile returns the configured timeout profile.
func (c *Config) Profile() script.TimeoutProfile {
	t := c.Timeouts
	return script.TimeoutProfile{
		RetryDelay:        t.RetryDelay,
		InjectionTotal:    t.InjectionTotal,
		PageLoadFallback:  t.PageLoadFallback,
		SettleDelay:       t.SettleDelay,
		FocusDelay:        t.FocusDelay,
		SubmitDelay:       t.SubmitDelay,
		ConnectivityDelay: t.ConnectivityDelay,
		WatcherInterval:   t.WatcherInterval,
		WatcherInitial:    t.WatcherInitial,
		PageLoadWait:      t.PageLoadWait,
		BotPageLoadWait:   t.BotPageLoadWait,
		WindowVisible:     t.WindowVisible,
		OfflineSettle:     t.OfflineSettle,
		MaxRetries:        t.MaxRetries,
		MaxWatcherChecks:  t.MaxWatcherChecks,
		MaxReloads:        t.MaxReloads,
	}
}

// Strategy returns the configured injection strategy.
func (c *Config) Strategy() domain.InjectionStrategy {
	return domain.InjectionStrategy(c.Injection.Strategy)
}
