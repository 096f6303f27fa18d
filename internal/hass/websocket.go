package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// The entity and device registries are not exposed over REST, so the
// API-tier fallback for them goes through the WebSocket API instead.

// defaultListTimeout bounds one list command end to end when the
// caller's context carries no deadline. A core that accepts the
// upgrade but never answers must not stall the pass.
const defaultListTimeout = 10 * time.Second

// WSClient is a minimal Home Assistant WebSocket API client. It opens
// one connection, authenticates, issues list commands, and closes.
type WSClient struct {
	url     string
	token   string
	timeout time.Duration
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewWSClient creates a WebSocket client for the given REST base URL.
// The http(s) scheme is rewritten to ws(s) and /websocket appended.
func NewWSClient(baseURL, token string) *WSClient {
	wsURL := strings.Replace(baseURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	return &WSClient{
		url:     wsURL + "/websocket",
		token:   token,
		timeout: defaultListTimeout,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:  slog.Default().With("component", "hass-ws"),
	}
}

// wsMessage covers every frame shape we exchange with core.
type wsMessage struct {
	ID          int             `json:"id,omitempty"`
	Type        string          `json:"type"`
	AccessToken string          `json:"access_token,omitempty"`
	Success     bool            `json:"success,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// EntityRegistry lists the entity registry via config/entity_registry/list.
func (c *WSClient) EntityRegistry(ctx context.Context) ([]RegistryEntity, error) {
	var entities []RegistryEntity
	if err := c.listCommand(ctx, "config/entity_registry/list", &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// DeviceRegistry lists the device registry via config/device_registry/list.
func (c *WSClient) DeviceRegistry(ctx context.Context) ([]RegistryDevice, error) {
	var devices []RegistryDevice
	if err := c.listCommand(ctx, "config/device_registry/list", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (c *WSClient) listCommand(ctx context.Context, command string, out interface{}) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial websocket API: %w", err)
	}
	defer func() { _ = conn.Close() }()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	_ = conn.SetReadDeadline(deadline)
	_ = conn.SetWriteDeadline(deadline)

	if err := c.authenticate(conn); err != nil {
		return err
	}

	if err := conn.WriteJSON(wsMessage{ID: 1, Type: command}); err != nil {
		return fmt.Errorf("send %s: %w", command, err)
	}

	// Core may interleave event frames; wait for our result ID.
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read %s result: %w", command, err)
		}
		if msg.Type != "result" || msg.ID != 1 {
			continue
		}
		if !msg.Success {
			return fmt.Errorf("command %s rejected", command)
		}
		if err := json.Unmarshal(msg.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", command, err)
		}
		return nil
	}
}

// authenticate performs the auth_required/auth/auth_ok handshake.
func (c *WSClient) authenticate(conn *websocket.Conn) error {
	var hello wsMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("unexpected greeting %q", hello.Type)
	}

	if err := conn.WriteJSON(wsMessage{Type: "auth", AccessToken: c.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	var reply wsMessage
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}
	if reply.Type != "auth_ok" {
		return fmt.Errorf("authentication failed: %s", reply.Type)
	}
	return nil
}
