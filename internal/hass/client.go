package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultBaseURL is the supervisor proxy to the Home Assistant core API.
const DefaultBaseURL = "http://supervisor/core"

// Client is an authenticated Home Assistant REST API client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a REST client for the given base URL. The token is
// the supervisor bearer token scoped to one discovery pass.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default().With("component", "hass"),
	}
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the bearer token the client authenticates with.
func (c *Client) Token() string {
	return c.token
}

// States returns all entity states from /api/states.
func (c *Client) States(ctx context.Context) ([]EntityState, error) {
	var states []EntityState
	if err := c.getJSON(ctx, "/api/states", &states); err != nil {
		return nil, err
	}
	return states, nil
}

// CameraStates returns the entity states in the camera domain.
func (c *Client) CameraStates(ctx context.Context) ([]EntityState, error) {
	states, err := c.States(ctx)
	if err != nil {
		return nil, err
	}
	var cameras []EntityState
	for _, s := range states {
		if s.IsCamera() {
			cameras = append(cameras, s)
		}
	}
	return cameras, nil
}

// ConfigEntries returns the configured integrations from the config
// entries API. Used as a fallback when the storage file is unreadable.
func (c *Client) ConfigEntries(ctx context.Context) ([]ConfigEntry, error) {
	var entries []ConfigEntry
	if err := c.getJSON(ctx, "/api/config/config_entries/entry", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
