// Package options loads the add-on configuration: the Home Assistant
// supplied options.json plus an optional discovery.yaml with tuning
// overrides for the discovery pass.
package options

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Run modes.
const (
	RunModeOnce  = "once"
	RunModeWatch = "watch"
)

// Stream quality tiers, mapped to UniFi Protect channel indexes.
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// DefaultOptionsPath is where the supervisor writes add-on options.
const DefaultOptionsPath = "/data/options.json"

// Options represents the add-on configuration.
type Options struct {
	MonocleToken  string   `json:"monocle_token"`
	AutoDiscover  bool     `json:"auto_discover"`
	StreamQuality string   `json:"stream_quality"`
	CameraFilters []string `json:"camera_filters"`

	RunMode     string `json:"run_mode"`
	APIPort     int    `json:"api_port"`
	NATSURL     string `json:"nats_url"`
	LogLevel    string `json:"log_level"`
	ConfigPath  string `json:"config_path"`
	TokenPath   string `json:"token_path"`
	HistoryPath string `json:"history_path"`

	// Discovery holds tuning overrides loaded from discovery.yaml.
	Discovery Discovery `json:"-"`
}

// Discovery holds the discovery tunables that vary per deployment:
// which go2rtc endpoints to probe and how long to wait on upstreams.
type Discovery struct {
	Go2RTCEndpoints  []string
	ProbeTimeout     time.Duration
	BootstrapTimeout time.Duration
}

// discoveryFile is the on-disk shape of discovery.yaml. Timeouts are
// whole seconds so the file stays editable without duration syntax.
type discoveryFile struct {
	Go2RTCEndpoints         []string `yaml:"go2rtc_endpoints"`
	ProbeTimeoutSeconds     int      `yaml:"probe_timeout_seconds"`
	BootstrapTimeoutSeconds int      `yaml:"bootstrap_timeout_seconds"`
}

// Default returns the default options.
func Default() *Options {
	return &Options{
		AutoDiscover:  true,
		StreamQuality: QualityHigh,
		RunMode:       RunModeOnce,
		APIPort:       8099,
		LogLevel:      "info",
		ConfigPath:    "/etc/monocle/monocle.json",
		TokenPath:     "/etc/monocle/monocle.token",
		HistoryPath:   "/data/automonocle.db",
		Discovery:     DefaultDiscovery(),
	}
}

// DefaultDiscovery returns the default discovery tunables. The endpoint
// list covers the HA built-in go2rtc, a standalone instance, the HA
// alternate port, and the docker network name.
func DefaultDiscovery() Discovery {
	return Discovery{
		Go2RTCEndpoints: []string{
			"http://supervisor/core/api/go2rtc/streams",
			"http://localhost:1984/api/streams",
			"http://localhost:11984/api/streams",
			"http://homeassistant:1984/api/streams",
		},
		ProbeTimeout:     5 * time.Second,
		BootstrapTimeout: 30 * time.Second,
	}
}

// Load reads options from the given path, applies defaults, and
// validates the result. A missing file yields pure defaults.
func Load(path string) (*Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, opts.Validate()
		}
		return nil, fmt.Errorf("failed to read options: %w", err)
	}

	if err := json.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("failed to parse options: %w", err)
	}

	return opts, opts.Validate()
}

// Reload re-reads the options file and applies the fields that take
// effect between passes: stream quality, camera filters, and the
// auto-discover switch. Paths, ports, and run mode keep their
// boot-time values. An unreadable or invalid file leaves the options
// unchanged.
func (o *Options) Reload(path string) error {
	next, err := Load(path)
	if err != nil {
		return err
	}
	o.StreamQuality = next.StreamQuality
	o.CameraFilters = next.CameraFilters
	o.AutoDiscover = next.AutoDiscover
	return nil
}

// LoadDiscoveryFile overlays tunables from a discovery.yaml file onto
// the options. A missing file is not an error.
func (o *Options) LoadDiscoveryFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read discovery config: %w", err)
	}

	var overlay discoveryFile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse discovery config: %w", err)
	}

	if len(overlay.Go2RTCEndpoints) > 0 {
		o.Discovery.Go2RTCEndpoints = overlay.Go2RTCEndpoints
	}
	if overlay.ProbeTimeoutSeconds > 0 {
		o.Discovery.ProbeTimeout = time.Duration(overlay.ProbeTimeoutSeconds) * time.Second
	}
	if overlay.BootstrapTimeoutSeconds > 0 {
		o.Discovery.BootstrapTimeout = time.Duration(overlay.BootstrapTimeoutSeconds) * time.Second
	}
	return nil
}

// Validate checks the options for invalid values.
func (o *Options) Validate() error {
	switch o.StreamQuality {
	case QualityHigh, QualityMedium, QualityLow:
	default:
		return fmt.Errorf("invalid stream_quality %q (must be high, medium, or low)", o.StreamQuality)
	}

	switch o.RunMode {
	case RunModeOnce, RunModeWatch:
	default:
		return fmt.Errorf("invalid run_mode %q (must be once or watch)", o.RunMode)
	}

	if o.APIPort < 0 || o.APIPort > 65535 {
		return fmt.Errorf("invalid api_port %d", o.APIPort)
	}

	return nil
}

// ChannelIndex maps the configured quality tier to a UniFi Protect
// channel index: high=0, medium=1, low=2.
func (o *Options) ChannelIndex() int {
	switch o.StreamQuality {
	case QualityMedium:
		return 1
	case QualityLow:
		return 2
	default:
		return 0
	}
}
