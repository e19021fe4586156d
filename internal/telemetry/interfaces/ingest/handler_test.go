package ingest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	telemetry "gridwatch/internal/telemetry/domain"
)

type stubRouter struct {
	routed []telemetry.Reading
	full   bool
}

func (s *stubRouter) Route(reading telemetry.Reading) bool {
	if s.full {
		return false
	}
	s.routed = append(s.routed, reading)
	return true
}

func TestReadingsHandlerSingleObject(t *testing.T) {
	router := &stubRouter{}
	handler, err := NewReadingsHandler(router, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	deviceID := uuid.New()
	body := `{"deviceId":"` + deviceID.String() + `","timestamp":1700000000000,"value":9.5}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.Code)
	}
	if len(router.routed) != 1 {
		t.Fatalf("routed %d readings, want 1", len(router.routed))
	}
	if router.routed[0].DeviceID != deviceID || router.routed[0].Value != 9.5 {
		t.Fatalf("routed %+v", router.routed[0])
	}
}

func TestReadingsHandlerBatch(t *testing.T) {
	router := &stubRouter{}
	handler, _ := NewReadingsHandler(router, nil)

	body := `{"readings":[
		{"deviceId":"` + uuid.NewString() + `","timestamp":1,"value":1},
		{"deviceId":"` + uuid.NewString() + `","timestamp":2,"value":2},
		{"deviceId":"broken","timestamp":3,"value":3}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	// Fire-and-forget: the malformed entry is dropped silently, the rest
	// go through, and the producer still gets 202.
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.Code)
	}
	if len(router.routed) != 2 {
		t.Fatalf("routed %d readings, want 2", len(router.routed))
	}
}

func TestReadingsHandlerMalformedBodyStillAccepted(t *testing.T) {
	router := &stubRouter{}
	handler, _ := NewReadingsHandler(router, nil)

	req := httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader("not json at all"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.Code)
	}
	if len(router.routed) != 0 {
		t.Fatalf("routed %d readings, want 0", len(router.routed))
	}
}

func TestReadingsHandlerRejectsNonPost(t *testing.T) {
	handler, _ := NewReadingsHandler(&stubRouter{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/ingest/readings", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.Code)
	}
}

func TestCSVReadingsHandler(t *testing.T) {
	router := &stubRouter{}
	handler, err := NewCSVReadingsHandler(router, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	deviceID := uuid.New()
	body := strings.Join([]string{
		"1700000000000," + deviceID.String() + ",10.5",
		"",
		"garbage line",
		"1700000600000," + deviceID.String() + ",11.0",
	}, "\n")
	req := httptest.NewRequest(http.MethodPost, "/ingest/readings.csv", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.Code)
	}
	if len(router.routed) != 2 {
		t.Fatalf("routed %d readings, want 2", len(router.routed))
	}
	if router.routed[1].Value != 11.0 {
		t.Fatalf("second reading = %+v", router.routed[1])
	}
}

func TestCSVReadingsHandlerCountsDrops(t *testing.T) {
	router := &stubRouter{full: true}
	handler, _ := NewCSVReadingsHandler(router, nil)

	body := "1700000000000," + uuid.NewString() + ",10.5"
	req := httptest.NewRequest(http.MethodPost, "/ingest/readings.csv", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 even when shards are saturated", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"accepted":0`) {
		t.Fatalf("body = %s, want accepted 0", resp.Body.String())
	}
}
