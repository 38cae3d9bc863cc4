// Package uxerror translates raw errors into user-friendly messages with
// recovery hints for the launcher.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"chatpilot/internal/adapter/tui/theme"
	"chatpilot/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Chat Window Closed"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError for the launcher banner.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

// Short is the single-line form used where space is tight.
func (fe FriendlyError) Short() string {
	if fe.Message == "" {
		return fe.Title
	}
	return fe.Title + ": " + fe.Message
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Domain sentinel errors (checked first so errors.Is works through wrapping).
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrInvalidInput) },
		produce: func(err error) FriendlyError {
			msg := "The message is empty or too long."
			var de *domain.DomainError
			if errors.As(err, &de) && de.Detail != "" {
				msg = strings.ToUpper(de.Detail[:1]) + de.Detail[1:] + "."
			}
			return FriendlyError{
				Title:   "Message Not Sent",
				Message: msg,
				Hints:   []string{fmt.Sprintf("Keep messages under %d characters", domain.MaxMessageLength)},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool {
			return errors.Is(err, domain.ErrBrowserClosed) || errors.Is(err, domain.ErrWindowNotFound)
		},
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Chat Window Closed",
				Message: "The Kimi tab is no longer available.",
				Hints:   []string{"Restart chatpilot", "Check browser.remote_url if attaching to an existing Chrome"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrNavigation) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Could Not Open Kimi",
				Message: "Navigating the chat window failed.",
				Hints:   []string{"Check your internet connection", "Verify site.chat_url in config"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrEvalDispatch) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Message Not Delivered",
				Message: "The chat page did not accept the injection.",
				Hints:   []string{"Wait for the page to finish loading", "Try again"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrStore) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Settings Not Saved",
				Message: "The settings database could not be written.",
				Hints:   []string{"Check store.path is writable"},
				Raw:     err.Error(),
			}
		},
	},

	{
		match:   containsAny("deadline exceeded", "timeout", "context deadline"),
		produce: constantError("Request Timed Out", "The chat window took too long to respond.", []string{"Try again", "Increase the timeouts in config"}),
	},
	{
		match:   containsAny("connection refused", "dial tcp"),
		produce: constantError("Browser Unreachable", "Could not reach Chrome's DevTools endpoint.", []string{"Check that Chrome is still running", "Verify browser.remote_url"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}

	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with logger.level: debug for more details"},
		Raw:     err.Error(),
	}
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
