package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	telemetry "gridwatch/internal/telemetry/domain"
)

// ConsumptionQuery reads persisted hourly aggregates.
type ConsumptionQuery interface {
	ListByDevice(ctx context.Context, deviceID uuid.UUID, from, to int64) ([]telemetry.HourlyAggregate, error)
}

// ConsumptionHandler serves GET /api/v1/consumption.
type ConsumptionHandler struct {
	query ConsumptionQuery
}

// NewConsumptionHandler constructs a ConsumptionHandler.
func NewConsumptionHandler(query ConsumptionQuery) (*ConsumptionHandler, error) {
	if query == nil {
		return nil, errors.New("apihttp: nil consumption query")
	}
	return &ConsumptionHandler{query: query}, nil
}

type consumptionRow struct {
	DeviceID         string  `json:"deviceId"`
	WindowStart      int64   `json:"windowStart"`
	TotalConsumption float64 `json:"totalConsumption"`
}

// ServeHTTP handles consumption queries by device and window range.
func (h *ConsumptionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	deviceID, from, to, err := parseConsumptionQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	aggregates, err := h.query.ListByDevice(r.Context(), deviceID, from, to)
	if err != nil {
		http.Error(w, "query consumption error", http.StatusInternalServerError)
		return
	}

	rows := make([]consumptionRow, 0, len(aggregates))
	for _, aggregate := range aggregates {
		rows = append(rows, consumptionRow{
			DeviceID:         aggregate.DeviceID.String(),
			WindowStart:      aggregate.WindowStart,
			TotalConsumption: aggregate.TotalConsumption,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// parseConsumptionQuery extracts deviceId plus an optional [from, to]
// range of logical epoch millis. Missing bounds default to everything.
func parseConsumptionQuery(r *http.Request) (uuid.UUID, int64, int64, error) {
	rawDevice := r.URL.Query().Get("deviceId")
	if rawDevice == "" {
		return uuid.Nil, 0, 0, errors.New("deviceId is required")
	}
	deviceID, err := uuid.Parse(rawDevice)
	if err != nil {
		return uuid.Nil, 0, 0, fmt.Errorf("bad deviceId: %v", err)
	}

	from, err := parseMillisQuery(r, "from", 0)
	if err != nil {
		return uuid.Nil, 0, 0, err
	}
	to, err := parseMillisQuery(r, "to", time.Now().UTC().UnixMilli())
	if err != nil {
		return uuid.Nil, 0, 0, err
	}
	if to < from {
		return uuid.Nil, 0, 0, errors.New("to must not precede from")
	}
	return deviceID, from, to, nil
}

func parseMillisQuery(r *http.Request, key string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s: %v", key, err)
	}
	return value, nil
}
