// Package hass provides read-only access to a Home Assistant instance:
// the REST API, the WebSocket API, and the persisted .storage registries.
package hass

import "strings"

// EntityState represents one entity from the /api/states endpoint.
type EntityState struct {
	EntityID   string           `json:"entity_id"`
	State      string           `json:"state"`
	Attributes CameraAttributes `json:"attributes"`
}

// CameraAttributes holds the camera-relevant subset of an entity's
// attributes. Unknown attributes are dropped during decode.
type CameraAttributes struct {
	FriendlyName string `json:"friendly_name"`
	StreamSource string `json:"stream_source"`
	RTSPURL      string `json:"rtsp_url"`
	VideoURL     string `json:"video_url"`
	StreamURL    string `json:"stream_url"`
	RTSPStream   string `json:"rtsp_stream"`
}

// IsCamera reports whether the entity belongs to the camera domain.
func (s *EntityState) IsCamera() bool {
	return strings.HasPrefix(s.EntityID, "camera.")
}

// ConfigEntry represents one integration config entry
// (core.config_entries storage file or the config entries API).
type ConfigEntry struct {
	EntryID string          `json:"entry_id"`
	Domain  string          `json:"domain"`
	Title   string          `json:"title"`
	Data    ConfigEntryData `json:"data"`
}

// ConfigEntryData holds the connection fields an integration stores.
// Different integrations use different keys for the host.
type ConfigEntryData struct {
	Host     string `json:"host"`
	IP       string `json:"ip"`
	Address  string `json:"address"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// HostValue returns the first non-empty host field.
func (d ConfigEntryData) HostValue() string {
	for _, v := range []string{d.Host, d.IP, d.Address} {
		if v != "" {
			return v
		}
	}
	return ""
}

// RegistryEntity represents one entity registry entry.
type RegistryEntity struct {
	EntityID string `json:"entity_id"`
	Platform string `json:"platform"`
	UniqueID string `json:"unique_id"`
	DeviceID string `json:"device_id"`
}

// RegistryDevice represents one device registry entry.
type RegistryDevice struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	NameByUser  string     `json:"name_by_user"`
	Connections [][]string `json:"connections"`
}

// DisplayName returns the user-assigned alias when present,
// falling back to the manufacturer's device name.
func (d *RegistryDevice) DisplayName() string {
	if d.NameByUser != "" {
		return d.NameByUser
	}
	return d.Name
}

// MACs returns the device's MAC addresses normalized to
// uppercase with separators stripped.
func (d *RegistryDevice) MACs() []string {
	var macs []string
	for _, conn := range d.Connections {
		if len(conn) >= 2 && conn[0] == "mac" {
			macs = append(macs, NormalizeMAC(conn[1]))
		}
	}
	return macs
}

// NormalizeMAC uppercases a MAC address and strips colon separators
// so it can be joined against UniFi unique IDs.
func NormalizeMAC(mac string) string {
	return strings.ToUpper(strings.ReplaceAll(mac, ":", ""))
}
