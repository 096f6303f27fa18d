// Package monocle projects the discovery registry into the Monocle
// Gateway configuration and writes the config and token artifacts.
package monocle

import (
	"log/slog"

	"github.com/automonocle/automonocle/internal/discovery"
)

// ProxyTag marks a camera as proxied through the gateway.
const ProxyTag = "@proxy"

// Config is the Monocle Gateway camera configuration.
type Config struct {
	Cameras []Camera `json:"cameras"`
}

// Camera is one gateway camera entry.
type Camera struct {
	Name string   `json:"name"`
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

// Project transforms the discovery records into a gateway config.
// Records without a stream URL are skipped and returned by entity ID
// so the caller can report them. Pure structural transform: no
// matching or merging happens here.
func Project(records []*discovery.Record) (*Config, []string) {
	logger := slog.Default().With("component", "monocle")

	config := &Config{Cameras: []Camera{}}
	var skipped []string

	for _, rec := range records {
		if !rec.Resolved() {
			logger.Warn("Skipping camera without stream URL", "entity_id", rec.EntityID, "name", rec.Name)
			skipped = append(skipped, rec.EntityID)
			continue
		}
		config.Cameras = append(config.Cameras, Camera{
			Name: rec.Name,
			URL:  rec.StreamURL,
			Tags: []string{ProxyTag},
		})
		logger.Info("Added camera to gateway config", "name", rec.Name)
	}

	return config, skipped
}
