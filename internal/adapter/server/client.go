package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatpilot/internal/domain"
)

// Client talks to a running instance's control API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for origin (e.g. http://127.0.0.1:7823).
func NewClient(origin string) *Client {
	return &Client{
		baseURL: strings.TrimRight(origin, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Alive reports whether an instance answers the health check.
func (c *Client) Alive(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ShowMain brings the running instance's main window to the front.
func (c *Client) ShowMain(ctx context.Context) error {
	return c.expectNoContent(ctx, "/api/main/show")
}

// ToggleLauncher flips the running instance's launcher.
func (c *Client) ToggleLauncher(ctx context.Context) error {
	return c.expectNoContent(ctx, "/api/launcher/toggle")
}

// Submit forwards a message and returns its run ID.
func (c *Client) Submit(ctx context.Context, req domain.InjectionRequest) (string, error) {
	var out submitResponse
	if err := c.roundTrip(ctx, http.MethodPost, "/api/submit", req, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	return out.Run, nil
}

// Settings fetches the current settings.
func (c *Client) Settings(ctx context.Context) (domain.AppSettings, error) {
	var out domain.AppSettings
	err := c.roundTrip(ctx, http.MethodGet, "/api/settings", nil, http.StatusOK, &out)
	return out, err
}

// SaveSettings replaces the settings.
func (c *Client) SaveSettings(ctx context.Context, s domain.AppSettings) error {
	return c.roundTrip(ctx, http.MethodPut, "/api/settings", s, http.StatusOK, nil)
}

func (c *Client) expectNoContent(ctx context.Context, path string) error {
	return c.roundTrip(ctx, http.MethodPost, path, nil, http.StatusNoContent, nil)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, want int, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e errorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s (%s)", method, path, e.Error, e.Code)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}
