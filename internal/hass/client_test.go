package hass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Unexpected authorization header: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"entity_id": "camera.garage", "state": "idle", "attributes": {"friendly_name": "Garage", "stream_source": "rtsp://cam1/live"}},
			{"entity_id": "light.kitchen", "state": "on", "attributes": {"friendly_name": "Kitchen Light"}}
		]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-token")
	states, err := c.States(context.Background())
	if err != nil {
		t.Fatalf("States failed: %v", err)
	}

	if len(states) != 2 {
		t.Fatalf("Expected 2 states, got %d", len(states))
	}
	if states[0].Attributes.StreamSource != "rtsp://cam1/live" {
		t.Errorf("Expected stream_source decoded, got '%s'", states[0].Attributes.StreamSource)
	}
}

func TestCameraStates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"entity_id": "camera.garage", "state": "idle", "attributes": {"friendly_name": "Garage"}},
			{"entity_id": "sensor.temp", "state": "21", "attributes": {}}
		]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "token")
	cameras, err := c.CameraStates(context.Background())
	if err != nil {
		t.Fatalf("CameraStates failed: %v", err)
	}

	if len(cameras) != 1 {
		t.Fatalf("Expected 1 camera, got %d", len(cameras))
	}
	if cameras[0].EntityID != "camera.garage" {
		t.Errorf("Expected camera.garage, got '%s'", cameras[0].EntityID)
	}
}

func TestConfigEntriesAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/config/config_entries/entry" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"entry_id": "e1", "domain": "unifiprotect", "data": {"host": "10.0.0.2"}}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "token")
	entries, err := c.ConfigEntries(context.Background())
	if err != nil {
		t.Fatalf("ConfigEntries failed: %v", err)
	}

	if len(entries) != 1 || entries[0].Domain != "unifiprotect" {
		t.Errorf("Unexpected entries: %+v", entries)
	}
}

func TestClientNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(server.URL, "bad-token")
	if _, err := c.States(context.Background()); err == nil {
		t.Error("Expected error on 401 response")
	}
}
