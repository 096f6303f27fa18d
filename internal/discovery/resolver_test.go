package discovery

import (
	"testing"

	"github.com/automonocle/automonocle/internal/hass"
)

func cameraState(entityID, friendlyName string) hass.EntityState {
	return hass.EntityState{
		EntityID:   entityID,
		Attributes: hass.CameraAttributes{FriendlyName: friendlyName},
	}
}

func TestSeed(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{
		cameraState("camera.garage", "Garage"),
		cameraState("camera.kitchen", "Kitchen"),
		{EntityID: "sensor.temp"},
	}, nil)

	records := reg.Records()
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].EntityID != "camera.garage" || records[0].Name != "Garage" {
		t.Errorf("Unexpected first record: %+v", records[0])
	}
}

func TestSeedFilters(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{
		cameraState("camera.garage", "Garage"),
		cameraState("camera.kitchen", "Kitchen"),
	}, []string{"garage"})

	records := reg.Records()
	if len(records) != 1 {
		t.Fatalf("Expected 1 record after filtering, got %d", len(records))
	}
	if records[0].EntityID != "camera.garage" {
		t.Errorf("Expected camera.garage, got %s", records[0].EntityID)
	}
}

func TestSeedFilterMatchesFriendlyName(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{
		cameraState("camera.cam_01", "Front Door"),
	}, []string{"front"})

	if len(reg.Records()) != 1 {
		t.Error("Expected filter to match the friendly name")
	}
}

func TestSeedDefaultName(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{
		cameraState("camera.back_yard", ""),
	}, nil)

	if got := reg.Records()[0].Name; got != "Back Yard" {
		t.Errorf("Expected title-cased name 'Back Yard', got '%s'", got)
	}
}

func TestFoldRelayMatch(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{cameraState("camera.garage", "Garage")}, nil)

	reg.FoldRelay([]RelayStream{{Name: "garage", URL: "rtsp://x/garage"}})

	rec := reg.Records()[0]
	if rec.StreamURL != "rtsp://x/garage" {
		t.Errorf("Expected relay URL, got '%s'", rec.StreamURL)
	}
	if rec.Origin != OriginGo2RTC {
		t.Errorf("Expected origin go2rtc, got '%s'", rec.Origin)
	}
}

func TestFoldRelayClaimsOneRecordPerStream(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{
		cameraState("camera.garage", "Garage"),
		cameraState("camera.garage_2", "Garage 2"),
	}, nil)

	reg.FoldRelay([]RelayStream{{Name: "garage", URL: "rtsp://x/garage"}})

	records := reg.Records()
	if records[0].StreamURL != "rtsp://x/garage" {
		t.Error("Expected first matching record to be claimed")
	}
	if records[1].StreamURL != "" {
		t.Error("Expected only one record claimed per relay stream")
	}
}

func TestFoldRelayNoMatchDropped(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{cameraState("camera.garage", "Garage")}, nil)

	reg.FoldRelay([]RelayStream{{Name: "driveway", URL: "rtsp://x/driveway"}})

	// Relay candidates never synthesize records.
	if len(reg.Records()) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(reg.Records()))
	}
	if reg.Records()[0].StreamURL != "" {
		t.Error("Expected unmatched relay stream to be dropped")
	}
}

func TestFoldUniFiMatchByName(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{cameraState("camera.garage_high", "Garage")}, nil)

	reg.FoldUniFi([]UniFiStream{
		{Key: "camera.garage", Name: "Garage", URL: "rtsps://h:7441/abc"},
	}, UniFiModeAPI)

	rec := reg.Records()[0]
	if rec.StreamURL != "rtsps://h:7441/abc" {
		t.Errorf("Expected UniFi URL, got '%s'", rec.StreamURL)
	}
	if rec.Origin != OriginUniFi {
		t.Errorf("Expected origin unifi, got '%s'", rec.Origin)
	}
}

func TestFoldUniFiUnderscoreNormalization(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{cameraState("camera.front_door_cam", "FD")}, nil)

	reg.FoldUniFi([]UniFiStream{
		{Name: "front door", URL: "rtsps://h:7441/fd"},
	}, UniFiModeAPI)

	if reg.Records()[0].StreamURL != "rtsps://h:7441/fd" {
		t.Error("Expected space-to-underscore match against the entity ID")
	}
}

func TestFoldUniFiSynthesizesRecord(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{cameraState("camera.kitchen", "Kitchen")}, nil)

	reg.FoldUniFi([]UniFiStream{
		{Name: "Garage", URL: "rtsps://h:7441/abc"},
	}, UniFiModeAPI)

	records := reg.Records()
	if len(records) != 2 {
		t.Fatalf("Expected synthesized record, got %d records", len(records))
	}

	synth := records[1]
	if synth.EntityID != "camera.unifi_garage" {
		t.Errorf("Expected synthesized ID 'camera.unifi_garage', got '%s'", synth.EntityID)
	}
	if synth.Name != "Garage" || synth.StreamURL != "rtsps://h:7441/abc" {
		t.Errorf("Unexpected synthesized record: %+v", synth)
	}
}

func TestFoldUniFiSkipsResolvedRecords(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{cameraState("camera.garage", "Garage")}, nil)

	// Relay resolved this record first.
	reg.FoldRelay([]RelayStream{{Name: "garage", URL: "rtsp://relay/garage"}})
	reg.FoldUniFi([]UniFiStream{
		{Name: "Garage", URL: "rtsps://h:7441/abc"},
	}, UniFiModeAPI)

	records := reg.Records()
	if records[0].StreamURL != "rtsp://relay/garage" {
		t.Errorf("Relay URL must not be overwritten, got '%s'", records[0].StreamURL)
	}
	// The UniFi candidate could not claim the record, so it
	// synthesizes a new one.
	if len(records) != 2 {
		t.Fatalf("Expected synthesized record for unconsumed UniFi stream, got %d records", len(records))
	}
}

func TestFoldUniFiFallbackOrigin(t *testing.T) {
	reg := NewRegistry()
	reg.FoldUniFi([]UniFiStream{
		{Name: "Garage", URL: "rtsps://u:p@h:7441/MAC?channel=0"},
	}, UniFiModeFallback)

	if reg.Records()[0].Origin != OriginUniFiFallback {
		t.Errorf("Expected fallback origin, got '%s'", reg.Records()[0].Origin)
	}
}

func TestFoldAttributes(t *testing.T) {
	state := hass.EntityState{
		EntityID: "camera.cam1",
		Attributes: hass.CameraAttributes{
			FriendlyName: "Cam 1",
			StreamSource: "rtsp://cam1/live",
		},
	}

	reg := NewRegistry()
	reg.Seed([]hass.EntityState{state}, nil)
	reg.FoldAttributes()

	rec := reg.Records()[0]
	if rec.StreamURL != "rtsp://cam1/live" {
		t.Errorf("Expected attribute URL, got '%s'", rec.StreamURL)
	}
	if rec.Origin != OriginAttribute {
		t.Errorf("Expected origin attribute, got '%s'", rec.Origin)
	}
}

func TestFoldAttributesDoesNotOverwrite(t *testing.T) {
	state := hass.EntityState{
		EntityID: "camera.garage",
		Attributes: hass.CameraAttributes{
			FriendlyName: "Garage",
			StreamSource: "rtsp://cam1/live",
		},
	}

	reg := NewRegistry()
	reg.Seed([]hass.EntityState{state}, nil)
	reg.FoldRelay([]RelayStream{{Name: "garage", URL: "rtsp://relay/garage"}})
	reg.FoldAttributes()

	if got := reg.Records()[0].StreamURL; got != "rtsp://relay/garage" {
		t.Errorf("Attribute fold must not overwrite, got '%s'", got)
	}
}

func TestPriorityRelayOverUniFi(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{cameraState("camera.garage", "Garage")}, nil)

	reg.FoldRelay([]RelayStream{{Name: "garage", URL: "rtsp://relay/garage"}})
	reg.FoldUniFi([]UniFiStream{{Name: "Garage", URL: "rtsps://h:7441/abc"}}, UniFiModeAPI)
	reg.FoldAttributes()

	if got := reg.Records()[0].StreamURL; got != "rtsp://relay/garage" {
		t.Errorf("Expected relay URL to win, got '%s'", got)
	}
}

func TestResolvedCount(t *testing.T) {
	reg := NewRegistry()
	reg.Seed([]hass.EntityState{
		cameraState("camera.garage", "Garage"),
		cameraState("camera.kitchen", "Kitchen"),
	}, nil)
	reg.FoldRelay([]RelayStream{{Name: "garage", URL: "rtsp://x/garage"}})

	if got := reg.ResolvedCount(); got != 1 {
		t.Errorf("Expected 1 resolved, got %d", got)
	}
}

func TestMatchByName(t *testing.T) {
	tests := []struct {
		name       string
		candidate  string
		recordName string
		recordID   string
		normalize  bool
		want       bool
	}{
		{"stream name in entity id", "garage", "G", "camera.garage", false, true},
		{"stream name in display name", "garage", "Garage East", "camera.x", false, true},
		{"display name in candidate", "Garage East", "Garage", "camera.x", false, true},
		{"case folding", "GARAGE", "garage", "camera.x", false, true},
		{"no match", "driveway", "Garage", "camera.garage", false, false},
		{"normalized candidate in id", "front door", "X", "camera.front_door", true, true},
		{"unnormalized spaces do not match id", "front door", "X", "camera.front_door", false, false},
		{"empty candidate never matches", "", "Garage", "camera.garage", false, false},
		{"empty record name ignored", "garage", "", "camera.other", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchByName(tt.candidate, tt.recordName, tt.recordID, tt.normalize); got != tt.want {
				t.Errorf("matchByName(%q, %q, %q, %v) = %v, want %v",
					tt.candidate, tt.recordName, tt.recordID, tt.normalize, got, tt.want)
			}
		})
	}
}

func TestNameFromEntityID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"camera.garage_high", "Garage"},
		{"camera.front_door_medium", "Front Door"},
		{"camera.back_yard", "Back Yard"},
	}

	for _, tt := range tests {
		if got := nameFromEntityID(tt.in); got != tt.want {
			t.Errorf("nameFromEntityID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
