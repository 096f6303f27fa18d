package events

import (
	"testing"

	"github.com/automonocle/automonocle/internal/discovery"
)

func TestEventsForResult(t *testing.T) {
	result := &discovery.Result{
		RunID: "run-1",
		Records: []*discovery.Record{
			{EntityID: "camera.garage", Name: "Garage", StreamURL: "rtsp://x/garage", Origin: discovery.OriginGo2RTC},
			{EntityID: "camera.kitchen", Name: "Kitchen"},
		},
		Total:     2,
		Resolved:  1,
		UniFiMode: discovery.UniFiModeAPI,
	}

	completed, resolved := EventsForResult(result)

	if completed.RunID != "run-1" || completed.Total != 2 || completed.Resolved != 1 {
		t.Errorf("Unexpected completed event: %+v", completed)
	}
	if completed.Degraded {
		t.Error("API mode must not report degraded")
	}

	if len(resolved) != 1 {
		t.Fatalf("Expected 1 resolved event, got %d", len(resolved))
	}
	if resolved[0].EntityID != "camera.garage" || resolved[0].Origin != "go2rtc" {
		t.Errorf("Unexpected resolved event: %+v", resolved[0])
	}
}

func TestEventsForResultDegraded(t *testing.T) {
	result := &discovery.Result{RunID: "run-2", UniFiMode: discovery.UniFiModeFallback}

	completed, _ := EventsForResult(result)
	if !completed.Degraded {
		t.Error("Fallback mode must report degraded")
	}
}

func TestConnectUnreachable(t *testing.T) {
	if _, err := Connect("nats://127.0.0.1:1"); err == nil {
		t.Error("Expected error for unreachable broker")
	}
}
