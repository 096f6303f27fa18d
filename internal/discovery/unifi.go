package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/automonocle/automonocle/internal/hass"
	"github.com/automonocle/automonocle/internal/protect"
)

// ErrNoIntegration is returned when no UniFi Protect config entry
// exists. The pass treats it as "integration not installed".
var ErrNoIntegration = errors.New("unifi protect integration not found")

// UniFiMode records which path produced the UniFi streams.
type UniFiMode string

const (
	// UniFiModeAPI means the NVR's bootstrap API was queried.
	UniFiModeAPI UniFiMode = "api"
	// UniFiModeFallback means URLs were constructed from entity
	// registry MAC addresses without contacting the NVR.
	UniFiModeFallback UniFiMode = "fallback"
	// UniFiModeAbsent means the integration is not configured.
	UniFiModeAbsent UniFiMode = "absent"
)

// unifiDomains are the config entry domains the integration may
// register under.
var unifiDomains = []string{"unifiprotect", "unifi_protect", "ubiquiti_unifi_protect"}

// UniFiStream is one camera stream resolved from UniFi Protect.
type UniFiStream struct {
	Key  string
	Name string
	URL  string
	MAC  string
}

// UniFiConnection holds the NVR connection parameters resolved from
// the integration's stored configuration.
type UniFiConnection struct {
	Host     string
	Port     int
	Username string
	Password string
}

// storageReader is the subset of hass.Storage the adapter reads.
type storageReader interface {
	ConfigEntries() ([]hass.ConfigEntry, error)
	DeviceRegistry() ([]hass.RegistryDevice, error)
	EntityRegistry() ([]hass.RegistryEntity, error)
}

// entryAPI is the REST fallback for config entries.
type entryAPI interface {
	ConfigEntries(ctx context.Context) ([]hass.ConfigEntry, error)
}

// registryAPI is the WebSocket fallback for the registries.
type registryAPI interface {
	EntityRegistry(ctx context.Context) ([]hass.RegistryEntity, error)
	DeviceRegistry(ctx context.Context) ([]hass.RegistryDevice, error)
}

// protectSession is the part of the Protect client the adapter drives.
type protectSession interface {
	Login(ctx context.Context, username, password string) error
	Bootstrap(ctx context.Context) (*protect.Bootstrap, error)
}

// UniFiAdapter resolves camera streams from a UniFi Protect NVR. The
// primary path authenticates against the NVR and reads its bootstrap;
// if that fails, URLs are constructed from MAC addresses already
// present in the entity registry.
type UniFiAdapter struct {
	storage  storageReader
	api      entryAPI
	registry registryAPI

	newSession       func(host string) protectSession
	rtspPort         int
	bootstrapTimeout time.Duration
	logger           *slog.Logger
}

// NewUniFiAdapter creates a UniFi Protect adapter over the given
// collaborators.
func NewUniFiAdapter(storage storageReader, api entryAPI, registry registryAPI, bootstrapTimeout time.Duration) *UniFiAdapter {
	return &UniFiAdapter{
		storage:  storage,
		api:      api,
		registry: registry,
		newSession: func(host string) protectSession {
			return protect.NewClient(host, bootstrapTimeout)
		},
		rtspPort:         protect.DefaultRTSPSPort,
		bootstrapTimeout: bootstrapTimeout,
		logger:           slog.Default().With("component", "unifi"),
	}
}

// FindConnection locates the UniFi Protect config entry and extracts
// the NVR connection parameters. The storage file is preferred; the
// config entries API is the fallback.
func (a *UniFiAdapter) FindConnection(ctx context.Context) (*UniFiConnection, error) {
	entries, err := a.storage.ConfigEntries()
	if err != nil {
		a.logger.Debug("Config entries storage file not readable, trying API", "error", err)
		entries, err = a.api.ConfigEntries(ctx)
		if err != nil {
			return nil, fmt.Errorf("config entries unavailable: %w", err)
		}
	}

	for _, entry := range entries {
		if !isUniFiDomain(entry.Domain) {
			continue
		}
		host := entry.Data.HostValue()
		if host == "" {
			continue
		}
		a.logger.Info("Found UniFi Protect NVR", "host", host, "port", a.rtspPort)
		return &UniFiConnection{
			Host:     host,
			Port:     a.rtspPort,
			Username: entry.Data.Username,
			Password: entry.Data.Password,
		}, nil
	}

	return nil, ErrNoIntegration
}

func isUniFiDomain(domain string) bool {
	for _, d := range unifiDomains {
		if domain == d {
			return true
		}
	}
	return strings.Contains(strings.ToLower(domain), "protect")
}

// Streams resolves one stream per camera at the given channel index.
// The returned mode reports whether the API or the MAC fallback
// produced them.
func (a *UniFiAdapter) Streams(ctx context.Context, channel int) ([]UniFiStream, UniFiMode) {
	conn, err := a.FindConnection(ctx)
	if err != nil {
		if errors.Is(err, ErrNoIntegration) {
			a.logger.Info("UniFi Protect integration not found")
		} else {
			a.logger.Warn("UniFi Protect connection discovery failed", "error", err)
		}
		return nil, UniFiModeAbsent
	}

	streams, err := a.apiStreams(ctx, conn, channel)
	if err != nil {
		a.logger.Error("UniFi Protect API query failed, falling back to MAC-based URLs", "error", err)
		return a.fallbackStreams(ctx, conn, channel), UniFiModeFallback
	}
	return streams, UniFiModeAPI
}

// apiStreams authenticates against the NVR and synthesizes one
// rtspAlias URL per camera from the bootstrap document.
func (a *UniFiAdapter) apiStreams(ctx context.Context, conn *UniFiConnection, channel int) ([]UniFiStream, error) {
	a.logger.Info("Querying UniFi Protect API for camera streams", "channel", channel)

	session := a.newSession(conn.Host)
	if err := session.Login(ctx, conn.Username, conn.Password); err != nil {
		return nil, err
	}

	bootstrap, err := session.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}

	a.logger.Info("Found cameras in UniFi Protect", "count", len(bootstrap.Cameras))

	namesByMAC := a.deviceNamesByMAC(ctx)

	var streams []UniFiStream
	for _, cam := range bootstrap.Cameras {
		mac := hass.NormalizeMAC(cam.Mac)
		name := namesByMAC[mac]
		if name == "" {
			name = cam.Name
		}
		if name == "" {
			name = cam.ID
		}

		alias := cam.RTSPAliasForChannel(channel)
		if alias == "" {
			a.logger.Warn("No rtspAlias for camera channel", "camera", name, "channel", channel)
			continue
		}

		// The alias token carries the per-channel auth; no
		// credentials belong in the URL.
		streamURL := fmt.Sprintf("rtsps://%s:%d/%s", conn.Host, conn.Port, alias)
		streams = append(streams, UniFiStream{
			Key:  "camera." + slugify(name),
			Name: name,
			URL:  streamURL,
			MAC:  mac,
		})
		a.logger.Info("UniFi RTSP stream", "camera", name, "url", streamURL)
	}

	return streams, nil
}

// fallbackStreams constructs MAC-based URLs from the entity registry
// without contacting the NVR. Best effort: it relies on the NVR
// routing streams by MAC, which not all firmware does.
func (a *UniFiAdapter) fallbackStreams(ctx context.Context, conn *UniFiConnection, channel int) []UniFiStream {
	entities, err := a.storage.EntityRegistry()
	if err != nil {
		a.logger.Debug("Entity registry storage file not readable, trying websocket API", "error", err)
		entities, err = a.registry.EntityRegistry(ctx)
		if err != nil {
			a.logger.Warn("Entity registry unavailable", "error", err)
			return nil
		}
	}

	namesByDevice := a.deviceNamesByID(ctx)
	channelSuffix := fmt.Sprintf("_%d", channel)

	seen := make(map[string]bool)
	var streams []UniFiStream
	for _, ent := range entities {
		if !strings.HasPrefix(ent.EntityID, "camera.") {
			continue
		}
		if !strings.Contains(strings.ToLower(ent.Platform), "unifi") {
			continue
		}
		// unique_id format: "MAC_channel", e.g. "68D79AE248C8_0".
		// Insecure duplicates carry an _insecure suffix.
		if !strings.Contains(ent.UniqueID, channelSuffix) || strings.Contains(ent.UniqueID, "_insecure") {
			continue
		}

		idx := strings.LastIndex(ent.UniqueID, "_")
		if idx <= 0 {
			continue
		}
		mac := ent.UniqueID[:idx]
		ch := ent.UniqueID[idx+1:]

		// One entity exists per quality tier; keep the first per MAC.
		if seen[mac] {
			continue
		}
		seen[mac] = true

		name := namesByDevice[ent.DeviceID]
		if name == "" {
			name = nameFromEntityID(ent.EntityID)
		}

		streams = append(streams, UniFiStream{
			Key:  ent.EntityID,
			Name: name,
			URL:  a.fallbackURL(conn, mac, ch),
			MAC:  mac,
		})
		a.logger.Info("UniFi camera from entity registry", "camera", name, "mac", mac)
	}

	return streams
}

// fallbackURL builds rtsps://[user:pass@]host:port/MAC?channel=N.
// Credentials are percent-encoded into the URL when present; some
// older firmware only accepts authentication this way.
func (a *UniFiAdapter) fallbackURL(conn *UniFiConnection, mac, channel string) string {
	u := &url.URL{
		Scheme:   "rtsps",
		Host:     fmt.Sprintf("%s:%d", conn.Host, conn.Port),
		Path:     "/" + mac,
		RawQuery: "channel=" + channel,
	}
	if conn.Username != "" && conn.Password != "" {
		u.User = url.UserPassword(conn.Username, conn.Password)
		a.logger.Warn("Credentials embedded in fallback stream URL", "camera_mac", mac)
	}
	return u.String()
}

// deviceNamesByMAC maps normalized MAC addresses to display names from
// the device registry.
func (a *UniFiAdapter) deviceNamesByMAC(ctx context.Context) map[string]string {
	names := make(map[string]string)
	for _, dev := range a.devices(ctx) {
		name := dev.DisplayName()
		if name == "" {
			continue
		}
		for _, mac := range dev.MACs() {
			names[mac] = name
		}
	}
	return names
}

// deviceNamesByID maps device registry IDs to display names.
func (a *UniFiAdapter) deviceNamesByID(ctx context.Context) map[string]string {
	names := make(map[string]string)
	for _, dev := range a.devices(ctx) {
		if name := dev.DisplayName(); name != "" && dev.ID != "" {
			names[dev.ID] = name
		}
	}
	return names
}

func (a *UniFiAdapter) devices(ctx context.Context) []hass.RegistryDevice {
	devices, err := a.storage.DeviceRegistry()
	if err != nil {
		a.logger.Debug("Device registry storage file not readable, trying websocket API", "error", err)
		devices, err = a.registry.DeviceRegistry(ctx)
		if err != nil {
			a.logger.Warn("Device registry unavailable", "error", err)
			return nil
		}
	}
	return devices
}

// slugify lowercases a camera name and replaces spaces with
// underscores, matching entity ID conventions.
func slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// nameFromEntityID derives a presentable name from an entity ID when
// the device registry has none: strip the domain and quality suffix,
// then title-case the words.
func nameFromEntityID(entityID string) string {
	name := strings.TrimPrefix(entityID, "camera.")
	for _, suffix := range []string{"_high", "_medium", "_low"} {
		name = strings.ReplaceAll(name, suffix, "")
	}
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
