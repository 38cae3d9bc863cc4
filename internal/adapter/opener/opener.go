// Package opener hands external links to the desktop's default browser.
package opener

import (
	"io"
	"log/slog"

	"github.com/pkg/browser"

	"chatpilot/internal/domain"
)

// System opens URLs with the platform handler (xdg-open, open, start).
type System struct {
	open   func(string) error
	logger *slog.Logger
}

// New returns a System opener. The handler's stdout and stderr are
// discarded so they do not corrupt the launcher's terminal.
func New(logger *slog.Logger) *System {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return &System{open: browser.OpenURL, logger: logger}
}

// Open launches url. Callers validate it first.
func (s *System) Open(url string) error {
	if err := s.open(url); err != nil {
		return domain.NewDomainError("System.Open", domain.ErrNotFound, err.Error())
	}
	s.logger.Debug("opened external link", "url", url)
	return nil
}

var _ domain.URLOpener = (*System)(nil)
