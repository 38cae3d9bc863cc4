package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Host.SubmitMessage", ErrWindowNotFound, "window 'main'")
	want := "Host.SubmitMessage: window 'main': window not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Injector.Run", ErrTimeout, "")
	want := "Injector.Run: operation timed out"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("ValidateExternalURL", ErrInvalidExternalURL, "File URLs are not allowed")
	if !errors.Is(err, ErrInvalidExternalURL) {
		t.Error("errors.Is should match ErrInvalidExternalURL")
	}
}

func TestDomainErrorAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewDomainError("Store.Flush", ErrStore, "disk full"))
	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "Store.Flush", de.Op)
	assert.Equal(t, "disk full", de.Detail)
}

// --- ErrorCode tests ---

func TestErrorCodeOf_DirectSentinel(t *testing.T) {
	assert.Equal(t, CodeElementNotFound, ErrorCodeOf(ErrElementNotFound))
	assert.Equal(t, CodeEvalDispatch, ErrorCodeOf(ErrEvalDispatch))
	assert.Equal(t, CodeScriptException, ErrorCodeOf(ErrScriptException))
	assert.Equal(t, CodeInvalidSettings, ErrorCodeOf(ErrInvalidSettings))
}

func TestErrorCodeOf_DomainError(t *testing.T) {
	err := NewDomainError("Window.Show", ErrWindowNotFound, "settings")
	assert.Equal(t, CodeWindowNotFound, ErrorCodeOf(err))
}

func TestErrorCodeOf_WrappedError(t *testing.T) {
	wrapped := fmt.Errorf("navigate: %w", ErrNavigation)
	assert.Equal(t, CodeNavigation, ErrorCodeOf(wrapped))
}

func TestErrorCodeOf_UnknownError(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(fmt.Errorf("some random error")))
}

func TestErrorCodeOf_Nil(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(nil))
}

func TestDomainError_Code(t *testing.T) {
	err := NewDomainError("Settings.Decode", ErrInvalidSettings, "missing field")
	assert.Equal(t, CodeInvalidSettings, err.Code())
}

func TestDomainError_CodeUnknownSentinel(t *testing.T) {
	err := NewDomainError("Op", fmt.Errorf("custom"), "detail")
	assert.Equal(t, CodeUnknown, err.Code())
}

func TestAllSentinelsHaveCodes(t *testing.T) {
	require.NotEmpty(t, errorCodeMap)
	for sentinel, code := range errorCodeMap {
		assert.NotEmpty(t, code, "sentinel %v has empty code", sentinel)
		assert.NotEqual(t, CodeUnknown, code, "sentinel %v maps to UNKNOWN", sentinel)
	}
}

// --- WrapOp tests ---

func TestWrapOp_Nil(t *testing.T) {
	assert.Nil(t, WrapOp("anything", nil))
}

func TestWrapOp_Format(t *testing.T) {
	err := WrapOp("Store.Get", ErrStore)
	assert.Equal(t, "Store.Get: store operation failed", err.Error())
}

func TestWrapOp_Chain(t *testing.T) {
	inner := WrapOp("inner", ErrEvalDispatch)
	outer := WrapOp("outer", inner)
	assert.Equal(t, "outer: inner: script dispatch failed", outer.Error())
	assert.True(t, errors.Is(outer, ErrEvalDispatch))
	assert.Equal(t, CodeEvalDispatch, ErrorCodeOf(outer))
}
