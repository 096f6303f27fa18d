// Package protect provides a minimal UniFi Protect API client: session
// login and the bootstrap document that lists every camera and channel.
package protect

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// DefaultRTSPSPort is the secure RTSP port the NVR publishes streams on.
const DefaultRTSPSPort = 7441

// Client talks to a UniFi Protect NVR over HTTPS. Certificate
// validation is disabled: Protect consoles ship self-signed
// certificates and the NVR lives on the local network.
type Client struct {
	host   string
	http   *http.Client
	logger *slog.Logger
}

// Bootstrap is the Protect bootstrap document, reduced to the camera
// fields the discovery pass consumes.
type Bootstrap struct {
	Cameras []Camera `json:"cameras"`
}

// Camera is one camera known to the NVR.
type Camera struct {
	ID       string    `json:"id"`
	Mac      string    `json:"mac"`
	Name     string    `json:"name"`
	Channels []Channel `json:"channels"`
}

// Channel is one quality tier of a camera. The RTSPAlias carries the
// per-channel auth token; a camera with streaming disabled for a
// channel has an empty alias.
type Channel struct {
	ID        int    `json:"id"`
	RTSPAlias string `json:"rtspAlias"`
}

// RTSPAliasForChannel returns the alias for the given channel index.
func (c *Camera) RTSPAliasForChannel(channel int) string {
	for _, ch := range c.Channels {
		if ch.ID == channel {
			return ch.RTSPAlias
		}
	}
	return ""
}

// NewClient creates a Protect client for the given NVR host.
func NewClient(host string, timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		host: host,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // local NVR, self-signed cert
			},
		},
		logger: slog.Default().With("component", "protect"),
	}
}

// Login authenticates against the NVR. The session cookie is kept in
// the client's jar for subsequent requests.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://%s/api/auth/login", c.host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("protect login failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("protect login returned status %d", resp.StatusCode)
	}
	return nil
}

// Bootstrap fetches the full bootstrap document.
func (c *Client) Bootstrap(ctx context.Context) (*Bootstrap, error) {
	url := fmt.Sprintf("https://%s/proxy/protect/api/bootstrap", c.host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("protect bootstrap failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("protect bootstrap returned status %d", resp.StatusCode)
	}

	var bootstrap Bootstrap
	if err := json.NewDecoder(resp.Body).Decode(&bootstrap); err != nil {
		return nil, fmt.Errorf("decode bootstrap: %w", err)
	}
	c.logger.Debug("Fetched bootstrap", "cameras", len(bootstrap.Cameras))
	return &bootstrap, nil
}
