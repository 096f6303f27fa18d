// Package events publishes discovery outcomes to NATS so downstream
// automations can react to configuration changes. Publishing is
// optional and best-effort: a missing broker degrades to a warning.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/automonocle/automonocle/internal/discovery"
)

// Subjects published by the discovery pass.
const (
	SubjectCompleted      = "discovery.completed"
	SubjectCameraResolved = "discovery.camera.resolved"
)

// CompletedEvent announces one finished discovery pass.
type CompletedEvent struct {
	RunID    string `json:"run_id"`
	Total    int    `json:"total"`
	Resolved int    `json:"resolved"`
	Degraded bool   `json:"degraded"`
}

// CameraResolvedEvent announces one camera that acquired a stream URL.
type CameraResolvedEvent struct {
	RunID    string `json:"run_id"`
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Origin   string `json:"origin"`
}

// Publisher publishes discovery events to a NATS broker.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials the broker. Returns an error when the URL is
// unreachable; callers treat that as a degraded, non-fatal condition.
func Connect(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("automonocle"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event broker: %w", err)
	}
	return &Publisher{
		conn:   conn,
		logger: slog.Default().With("component", "events"),
	}, nil
}

// PublishResult publishes the pass summary plus one event per
// resolved camera.
func (p *Publisher) PublishResult(result *discovery.Result) error {
	completed, resolved := EventsForResult(result)

	if err := p.publish(SubjectCompleted, completed); err != nil {
		return err
	}
	for _, event := range resolved {
		if err := p.publish(SubjectCameraResolved, event); err != nil {
			return err
		}
	}

	return p.conn.Flush()
}

// EventsForResult shapes the events announcing one discovery result.
func EventsForResult(result *discovery.Result) (CompletedEvent, []CameraResolvedEvent) {
	completed := CompletedEvent{
		RunID:    result.RunID,
		Total:    result.Total,
		Resolved: result.Resolved,
		Degraded: result.UniFiMode == discovery.UniFiModeFallback,
	}

	var resolved []CameraResolvedEvent
	for _, rec := range result.Records {
		if !rec.Resolved() {
			continue
		}
		resolved = append(resolved, CameraResolvedEvent{
			RunID:    result.RunID,
			EntityID: rec.EntityID,
			Name:     rec.Name,
			Origin:   string(rec.Origin),
		})
	}

	return completed, resolved
}

func (p *Publisher) publish(subject string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the broker connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
