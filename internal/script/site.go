package script

import (
	"fmt"
	"net/url"
	"strings"

	"chatpilot/internal/domain"
)

// SiteConfig describes the target chat application and the host's own local
// origin.
type SiteConfig struct {
	ChatURL string
	BotURL  string
	// Domains are the registrable domains that belong to the application.
	// Links outside them are treated as external.
	Domains []string
	// LocalOrigin is the origin of the host's local server (offline view).
	LocalOrigin string
	// ReloadKey is the session-storage key of the reload guard.
	ReloadKey string
}

// DefaultSite returns the configuration for the public chat application.
func DefaultSite() SiteConfig {
	return SiteConfig{
		ChatURL:   "https://www.kimi.com/",
		BotURL:    "https://www.kimi.com/bot",
		Domains:   []string{"kimi.com", "moonshot.cn"},
		ReloadKey: "__kimi_sw_reload",
	}
}

// OnSiteDomain reports whether rawURL's host is one of the application's
// domains or a subdomain of one.
func (s SiteConfig) OnSiteDomain(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range s.Domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsLocal reports whether rawURL is served by the host's local server.
func (s SiteConfig) IsLocal(rawURL string) bool {
	return s.LocalOrigin != "" && strings.HasPrefix(rawURL, s.LocalOrigin)
}

// Validate checks that the URLs parse as absolute http(s) URLs.
func (s SiteConfig) Validate() error {
	for name, raw := range map[string]string{"chat_url": s.ChatURL, "bot_url": s.BotURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return domain.NewDomainError("SiteConfig.Validate", domain.ErrInvalidInput,
				fmt.Sprintf("%s %q is not an absolute http(s) URL", name, raw))
		}
	}
	if len(s.Domains) == 0 {
		return domain.NewDomainError("SiteConfig.Validate", domain.ErrInvalidInput, "no site domains configured")
	}
	if s.ReloadKey == "" {
		return domain.NewDomainError("SiteConfig.Validate", domain.ErrInvalidInput, "reload key is empty")
	}
	return nil
}
