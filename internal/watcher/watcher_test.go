package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestIsInteresting(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"/homeassistant/.storage/core.entity_registry", true},
		{"/homeassistant/.storage/core.device_registry", true},
		{"/homeassistant/.storage/core.config_entries", true},
		{"/data/options.json", true},
		{"/homeassistant/.storage/core.restore_state", false},
		{"/homeassistant/.storage/http", false},
	}

	for _, tt := range tests {
		if got := isInteresting(tt.name); got != tt.want {
			t.Errorf("isInteresting(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRunTriggersOnRegistryChange(t *testing.T) {
	tmpDir := t.TempDir()
	registry := filepath.Join(tmpDir, "core.entity_registry")
	if err := os.WriteFile(registry, []byte(`{}`), 0644); err != nil {
		t.Fatalf("Failed to create registry file: %v", err)
	}

	w := New([]string{tmpDir})
	w.debounce = 50 * time.Millisecond
	w.minInterval = 0

	var runs atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(context.Context) {
			runs.Add(1)
			cancel()
		})
	}()

	// Give the watcher time to register, then touch the file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(registry, []byte(`{"data":{}}`), 0644); err != nil {
		t.Fatalf("Failed to rewrite registry file: %v", err)
	}

	<-done
	if runs.Load() != 1 {
		t.Errorf("Expected 1 triggered pass, got %d", runs.Load())
	}
}

func TestRunIgnoresUnrelatedFiles(t *testing.T) {
	tmpDir := t.TempDir()

	w := New([]string{tmpDir})
	w.debounce = 50 * time.Millisecond
	w.minInterval = 0

	var runs atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(context.Context) { runs.Add(1) })
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(tmpDir, "core.restore_state"), []byte(`{}`), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	<-done
	if runs.Load() != 0 {
		t.Errorf("Expected no triggered passes, got %d", runs.Load())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New([]string{t.TempDir()})
	if err := w.Run(ctx, func(context.Context) {}); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
