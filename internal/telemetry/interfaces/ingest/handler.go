package ingest

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"gridwatch/internal/observability/metrics"
	telemetry "gridwatch/internal/telemetry/domain"
)

// Router is the slice of the shard router the ingress needs.
type Router interface {
	Route(reading telemetry.Reading) bool
}

// ReadingsHandler accepts JSON telemetry. Ingestion is fire-and-forget:
// the producer gets 202 once the body is read, and malformed or dropped
// records are only logged and counted, never reported back.
type ReadingsHandler struct {
	router Router
	logger *log.Logger
}

// NewReadingsHandler constructs the JSON ingress handler.
func NewReadingsHandler(router Router, logger *log.Logger) (*ReadingsHandler, error) {
	if router == nil {
		return nil, errors.New("ingest: nil router")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReadingsHandler{router: router, logger: logger}, nil
}

type readingRecord struct {
	DeviceID  string  `json:"deviceId"`
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

type readingsRequest struct {
	Readings []readingRecord `json:"readings"`
}

func (rec readingRecord) toReading() (telemetry.Reading, error) {
	deviceID, err := uuid.Parse(rec.DeviceID)
	if err != nil {
		return telemetry.Reading{}, telemetry.ErrMissingDeviceID
	}
	reading := telemetry.Reading{DeviceID: deviceID, Timestamp: rec.Timestamp, Value: rec.Value}
	if err := reading.Validate(); err != nil {
		return telemetry.Reading{}, err
	}
	return reading, nil
}

// ServeHTTP ingests a single reading object or a {"readings": [...]} batch.
func (h *ReadingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("ingest: read body error: %v", err)
		w.WriteHeader(http.StatusAccepted)
		return
	}
	defer r.Body.Close()

	records := h.decode(body)
	accepted := 0
	for _, rec := range records {
		reading, err := rec.toReading()
		if err != nil {
			h.logger.Printf("ingest: rejecting record for %q: %v", rec.DeviceID, err)
			metrics.IncReadingMalformed()
			continue
		}
		metrics.IncReadingReceived()
		if h.router.Route(reading) {
			accepted++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"accepted": accepted})
}

func (h *ReadingsHandler) decode(body []byte) []readingRecord {
	var batch readingsRequest
	if err := json.Unmarshal(body, &batch); err == nil && len(batch.Readings) > 0 {
		return batch.Readings
	}
	var single readingRecord
	if err := json.Unmarshal(body, &single); err != nil {
		h.logger.Printf("ingest: undecodable payload: %v", err)
		metrics.IncReadingMalformed()
		return nil
	}
	return []readingRecord{single}
}

// CSVReadingsHandler accepts the simulator wire format: one
// "timestamp,deviceId,value" line per reading.
type CSVReadingsHandler struct {
	router Router
	logger *log.Logger
}

// NewCSVReadingsHandler constructs the CSV ingress handler.
func NewCSVReadingsHandler(router Router, logger *log.Logger) (*CSVReadingsHandler, error) {
	if router == nil {
		return nil, errors.New("ingest: nil router")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CSVReadingsHandler{router: router, logger: logger}, nil
}

// ServeHTTP ingests newline-separated CSV readings.
func (h *CSVReadingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	accepted := 0
	scanner := bufio.NewScanner(r.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reading, err := telemetry.ParseCSVLine(line)
		if err != nil {
			h.logger.Printf("ingest: skipping malformed line: %v", err)
			metrics.IncReadingMalformed()
			continue
		}
		metrics.IncReadingReceived()
		if h.router.Route(reading) {
			accepted++
		}
	}
	if err := scanner.Err(); err != nil {
		h.logger.Printf("ingest: read body error: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"accepted": accepted})
}
