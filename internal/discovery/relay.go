// Package discovery implements the camera discovery pass: it gathers
// stream candidates from go2rtc, UniFi Protect, and camera entity
// attributes, reconciles them into one registry, and reports the
// outcome of each run.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// RelayStream is one go2rtc stream with its producer URL.
type RelayStream struct {
	Name string
	URL  string
}

// RelayAdapter probes a fixed list of go2rtc endpoints for the active
// stream table. go2rtc may run inside HA core, standalone, or on the
// docker network; the first endpoint that answers wins.
type RelayAdapter struct {
	endpoints []string
	token     string
	client    *http.Client
	logger    *slog.Logger
}

// NewRelayAdapter creates a relay adapter. The token authenticates
// endpoints routed through the supervisor; other endpoints are
// queried unauthenticated.
func NewRelayAdapter(endpoints []string, token string, timeout time.Duration) *RelayAdapter {
	return &RelayAdapter{
		endpoints: endpoints,
		token:     token,
		client:    &http.Client{Timeout: timeout},
		logger:    slog.Default().With("component", "go2rtc"),
	}
}

// relayStreamInfo mirrors one entry of the go2rtc streams API:
// {stream_name: {producers: [{url: "rtsp://..."}]}}.
type relayStreamInfo struct {
	Producers []relayProducer `json:"producers"`
}

type relayProducer struct {
	URL string `json:"url"`
}

// Streams returns the relay's streams from the first endpoint that
// responds. Endpoint failures are swallowed; an empty result means the
// relay is not present, which is a normal outcome.
func (a *RelayAdapter) Streams(ctx context.Context) []RelayStream {
	for _, endpoint := range a.endpoints {
		streams, err := a.probe(ctx, endpoint)
		if err != nil {
			a.logger.Debug("go2rtc endpoint not available", "endpoint", endpoint, "error", err)
			continue
		}
		a.logger.Info("Found go2rtc", "endpoint", endpoint, "streams", len(streams))
		return streams
	}

	a.logger.Info("go2rtc not found or no streams configured")
	return nil
}

func (a *RelayAdapter) probe(ctx context.Context, endpoint string) ([]RelayStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	// Only supervisor-proxied endpoints accept the bearer token.
	if strings.Contains(endpoint, "supervisor") && a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var table map[string]relayStreamInfo
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return nil, err
	}

	var streams []RelayStream
	for name, info := range table {
		for _, producer := range info.Producers {
			if strings.Contains(strings.ToLower(producer.URL), "rtsp") {
				streams = append(streams, RelayStream{Name: name, URL: producer.URL})
				a.logger.Info("go2rtc stream", "name", name, "url", producer.URL)
				break
			}
		}
	}

	// JSON object order is not preserved by the decoder; sort so the
	// fold order is stable across runs.
	sort.Slice(streams, func(i, j int) bool { return streams[i].Name < streams[j].Name })

	return streams, nil
}
