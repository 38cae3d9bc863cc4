package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Content-side failures never surface as Go errors; they
// arrive as inject-result events. These cover host-side failures and the
// driver-mode state machines.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrDisabled     = fmt.Errorf("disabled")
)

// Sentinel errors for the injection core and its collaborators.
var (
	ErrElementNotFound    = fmt.Errorf("element not found")
	ErrScriptException    = fmt.Errorf("script exception")
	ErrEvalDispatch       = fmt.Errorf("script dispatch failed")
	ErrInvalidExternalURL = fmt.Errorf("invalid external url")
	ErrWindowNotFound     = fmt.Errorf("window not found")
	ErrNavigation         = fmt.Errorf("navigation failed")
	ErrStore              = fmt.Errorf("store operation failed")
	ErrInvalidSettings    = fmt.Errorf("invalid settings")
	ErrConfigLoad         = fmt.Errorf("failed to load configuration")
	ErrNotifyFailed       = fmt.Errorf("notification failed")
	ErrBrowserClosed      = fmt.Errorf("browser closed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Host.SubmitMessage")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for logs and the control API.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeDisabled           ErrorCode = "DISABLED"
	CodeElementNotFound    ErrorCode = "ELEMENT_NOT_FOUND"
	CodeScriptException    ErrorCode = "SCRIPT_EXCEPTION"
	CodeEvalDispatch       ErrorCode = "EVAL_DISPATCH_FAILURE"
	CodeInvalidExternalURL ErrorCode = "INVALID_EXTERNAL_URL"
	CodeWindowNotFound     ErrorCode = "WINDOW_NOT_FOUND"
	CodeNavigation         ErrorCode = "NAVIGATION"
	CodeStore              ErrorCode = "STORE"
	CodeInvalidSettings    ErrorCode = "INVALID_SETTINGS"
	CodeConfigLoad         ErrorCode = "CONFIG_LOAD"
	CodeNotifyFailed       ErrorCode = "NOTIFY_FAILED"
	CodeBrowserClosed      ErrorCode = "BROWSER_CLOSED"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:           CodeNotFound,
	ErrTimeout:            CodeTimeout,
	ErrInvalidInput:       CodeInvalidInput,
	ErrDisabled:           CodeDisabled,
	ErrElementNotFound:    CodeElementNotFound,
	ErrScriptException:    CodeScriptException,
	ErrEvalDispatch:       CodeEvalDispatch,
	ErrInvalidExternalURL: CodeInvalidExternalURL,
	ErrWindowNotFound:     CodeWindowNotFound,
	ErrNavigation:         CodeNavigation,
	ErrStore:              CodeStore,
	ErrInvalidSettings:    CodeInvalidSettings,
	ErrConfigLoad:         CodeConfigLoad,
	ErrNotifyFailed:       CodeNotifyFailed,
	ErrBrowserClosed:      CodeBrowserClosed,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
