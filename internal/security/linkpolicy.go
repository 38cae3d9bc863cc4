package security

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"chatpilot/internal/domain"
)

// blockedSchemes are rejected with a scheme-specific reason before the
// allow-list is consulted.
var blockedSchemes = []struct {
	prefix string
	reason string
}{
	{"javascript:", "JavaScript URLs are not allowed"},
	{"data:", "Data URLs are not allowed"},
	{"file:", "File URLs are not allowed"},
	{"vbscript:", "vbscript URLs are not allowed"},
	{"mhtml:", "mhtml URLs are not allowed"},
	{"x-javascript:", "x-javascript URLs are not allowed"},
}

var allowedSchemes = []string{"http://", "https://", "mailto:"}

const schemeRequired = "URL must use http://, https://, or mailto: scheme"

// ValidateExternalURL checks that a page-requested link may be handed to the
// system opener. Matching is case-insensitive on the trimmed input.
func ValidateExternalURL(rawURL string) error {
	lower := strings.ToLower(strings.TrimSpace(rawURL))

	for _, b := range blockedSchemes {
		if strings.HasPrefix(lower, b.prefix) {
			return domain.NewDomainError("ValidateExternalURL", domain.ErrInvalidExternalURL, b.reason)
		}
	}

	for _, s := range allowedSchemes {
		if strings.HasPrefix(lower, s) {
			return nil
		}
	}
	return domain.NewDomainError("ValidateExternalURL", domain.ErrInvalidExternalURL, schemeRequired)
}

// RejectionReason returns the human-readable reason carried by a
// ValidateExternalURL error, or err.Error() for anything else.
func RejectionReason(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}

// IsLoopbackAddr reports whether a host:port (or bare host) is a loopback
// address. The control API only serves loopback peers.
func IsLoopbackAddr(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

// CheckListenAddr rejects listen addresses that would expose the control API
// beyond the local machine.
func CheckListenAddr(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return domain.NewDomainError("CheckListenAddr", domain.ErrInvalidInput, fmt.Sprintf("invalid address: %v", err))
	}
	if host == "" || !IsLoopbackAddr(host) {
		return domain.NewDomainError("CheckListenAddr", domain.ErrInvalidInput,
			fmt.Sprintf("address %q is not loopback", addr))
	}
	return nil
}
