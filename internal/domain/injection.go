package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength caps a single submitted message, in runes.
const MaxMessageLength = 5000

// InjectionRequest is one user submit action. It is consumed once by the host
// to pick a navigation target and then baked into the injection script.
type InjectionRequest struct {
	Message string `json:"message"`
	NewChat bool   `json:"newChat"`
	BotMode bool   `json:"botMode"`
}

// Normalize trims the message and applies the bot-implies-new-chat rule.
func (r InjectionRequest) Normalize() InjectionRequest {
	r.Message = strings.TrimSpace(r.Message)
	if r.BotMode {
		r.NewChat = true
	}
	return r
}

// Validate checks the request after normalization.
func (r InjectionRequest) Validate() error {
	if r.Message == "" {
		return NewDomainError("InjectionRequest.Validate", ErrInvalidInput, "message is empty")
	}
	if n := utf8.RuneCountInString(r.Message); n > MaxMessageLength {
		return NewDomainError("InjectionRequest.Validate", ErrInvalidInput,
			fmt.Sprintf("message too long (%d/%d)", n, MaxMessageLength))
	}
	return nil
}

// InjectionOutcome is produced inside the page and delivered as the payload of
// an inject-result event. At most one is emitted per injection run.
type InjectionOutcome struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	Run     string  `json:"run,omitempty"`
}

// Succeeded builds a success outcome.
func Succeeded(run string) InjectionOutcome {
	return InjectionOutcome{Success: true, Run: run}
}

// Failed builds a failure outcome carrying a human-readable message.
func Failed(run, msg string) InjectionOutcome {
	return InjectionOutcome{Success: false, Error: &msg, Run: run}
}

// ErrorMessage returns the failure message or "".
func (o InjectionOutcome) ErrorMessage() string {
	if o.Error == nil {
		return ""
	}
	return *o.Error
}

// InjectionStrategy selects where the state machines run.
type InjectionStrategy string

const (
	// StrategyScript renders content scripts and lets the page run them.
	StrategyScript InjectionStrategy = "script"
	// StrategyDriver runs the state machines host-side against the DOM driver.
	StrategyDriver InjectionStrategy = "driver"
)
