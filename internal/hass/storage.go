package hass

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// DefaultStoragePath is where the add-on sees the Home Assistant
// .storage directory (mapped homeassistant_config:ro).
const DefaultStoragePath = "/homeassistant/.storage"

// Storage file names read by the discovery pass.
const (
	ConfigEntriesFile  = "core.config_entries"
	DeviceRegistryFile = "core.device_registry"
	EntityRegistryFile = "core.entity_registry"
)

// Storage reads Home Assistant .storage registry files directly.
// Reading the files is more reliable than the API for registry data
// and works even when core is still starting up.
type Storage struct {
	path   string
	logger *slog.Logger
}

// NewStorage creates a storage reader rooted at the given directory.
func NewStorage(path string) *Storage {
	if path == "" {
		path = DefaultStoragePath
	}
	return &Storage{
		path:   path,
		logger: slog.Default().With("component", "storage"),
	}
}

// Path returns the storage directory being read.
func (s *Storage) Path() string {
	return s.path
}

// FilePath returns the absolute path of a storage file.
func (s *Storage) FilePath(name string) string {
	return filepath.Join(s.path, name)
}

// ConfigEntries reads the config entries storage file.
func (s *Storage) ConfigEntries() ([]ConfigEntry, error) {
	var doc struct {
		Data struct {
			Entries []ConfigEntry `json:"entries"`
		} `json:"data"`
	}
	if err := s.readFile(ConfigEntriesFile, &doc); err != nil {
		return nil, err
	}
	return doc.Data.Entries, nil
}

// DeviceRegistry reads the device registry storage file.
func (s *Storage) DeviceRegistry() ([]RegistryDevice, error) {
	var doc struct {
		Data struct {
			Devices []RegistryDevice `json:"devices"`
		} `json:"data"`
	}
	if err := s.readFile(DeviceRegistryFile, &doc); err != nil {
		return nil, err
	}
	return doc.Data.Devices, nil
}

// EntityRegistry reads the entity registry storage file.
func (s *Storage) EntityRegistry() ([]RegistryEntity, error) {
	var doc struct {
		Data struct {
			Entities []RegistryEntity `json:"entities"`
		} `json:"data"`
	}
	if err := s.readFile(EntityRegistryFile, &doc); err != nil {
		return nil, err
	}
	return doc.Data.Entities, nil
}

func (s *Storage) readFile(name string, out interface{}) error {
	data, err := os.ReadFile(s.FilePath(name))
	if err != nil {
		s.logger.Debug("Storage file not readable", "file", name, "error", err)
		return fmt.Errorf("read storage file %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("Storage file malformed", "file", name, "error", err)
		return fmt.Errorf("parse storage file %s: %w", name, err)
	}
	return nil
}
