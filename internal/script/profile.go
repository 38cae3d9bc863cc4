package script

import (
	"fmt"
	"strconv"
	"time"

	"chatpilot/internal/domain"
)

// TimeoutProfile holds every delay and bound used by the page automation.
// Each bounded loop has a count bound, a wall-clock bound, or both.
type TimeoutProfile struct {
	RetryDelay        time.Duration
	InjectionTotal    time.Duration
	PageLoadFallback  time.Duration
	SettleDelay       time.Duration
	FocusDelay        time.Duration
	SubmitDelay       time.Duration
	ConnectivityDelay time.Duration
	WatcherInterval   time.Duration
	WatcherInitial    time.Duration
	PageLoadWait      time.Duration
	BotPageLoadWait   time.Duration
	WindowVisible     time.Duration
	OfflineSettle     time.Duration

	MaxRetries       int
	MaxWatcherChecks int
	MaxReloads       int
}

// DefaultProfile returns the tuned defaults.
func DefaultProfile() TimeoutProfile {
	return TimeoutProfile{
		RetryDelay:        300 * time.Millisecond,
		InjectionTotal:    8 * time.Second,
		PageLoadFallback:  500 * time.Millisecond,
		SettleDelay:       200 * time.Millisecond,
		FocusDelay:        50 * time.Millisecond,
		SubmitDelay:       300 * time.Millisecond,
		ConnectivityDelay: 5 * time.Second,
		WatcherInterval:   500 * time.Millisecond,
		WatcherInitial:    2 * time.Second,
		PageLoadWait:      800 * time.Millisecond,
		BotPageLoadWait:   1500 * time.Millisecond,
		WindowVisible:     100 * time.Millisecond,
		OfflineSettle:     200 * time.Millisecond,
		MaxRetries:        15,
		MaxWatcherChecks:  600,
		MaxReloads:        1,
	}
}

// Validate requires positive durations and counts of at least one.
func (p TimeoutProfile) Validate() error {
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"retry_delay", p.RetryDelay},
		{"injection_total", p.InjectionTotal},
		{"page_load_fallback", p.PageLoadFallback},
		{"settle_delay", p.SettleDelay},
		{"focus_delay", p.FocusDelay},
		{"submit_delay", p.SubmitDelay},
		{"connectivity_delay", p.ConnectivityDelay},
		{"watcher_interval", p.WatcherInterval},
		{"watcher_initial", p.WatcherInitial},
		{"page_load_wait", p.PageLoadWait},
		{"bot_page_load_wait", p.BotPageLoadWait},
		{"window_visible", p.WindowVisible},
		{"offline_settle", p.OfflineSettle},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return domain.NewDomainError("TimeoutProfile.Validate", domain.ErrInvalidInput,
				fmt.Sprintf("%s must be positive, got %s", d.name, d.d))
		}
	}
	counts := []struct {
		name string
		n    int
	}{
		{"max_retries", p.MaxRetries},
		{"max_watcher_checks", p.MaxWatcherChecks},
		{"max_reloads", p.MaxReloads},
	}
	for _, c := range counts {
		if c.n < 1 {
			return domain.NewDomainError("TimeoutProfile.Validate", domain.ErrInvalidInput,
				fmt.Sprintf("%s must be at least 1, got %d", c.name, c.n))
		}
	}
	return nil
}

// ms renders d as a whole number of milliseconds.
func ms(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
