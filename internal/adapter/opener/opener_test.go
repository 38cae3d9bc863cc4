package opener

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpilot/internal/domain"
)

func TestSystemOpen(t *testing.T) {
	var got string
	s := &System{
		open:   func(u string) error { got = u; return nil },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	require.NoError(t, s.Open("https://example.com/docs"))
	assert.Equal(t, "https://example.com/docs", got)
}

func TestSystemOpenError(t *testing.T) {
	s := &System{
		open:   func(string) error { return errors.New("xdg-open: not found") },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	err := s.Open("https://example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
