package reports

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	telemetry "gridwatch/internal/telemetry/domain"
)

// Format selects the export encoding.
type Format string

// Supported export formats.
const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ConsumptionQuery reads persisted hourly aggregates.
type ConsumptionQuery interface {
	ListByDevice(ctx context.Context, deviceID uuid.UUID, from, to int64) ([]telemetry.HourlyAggregate, error)
}

// ExportHandler serves consumption report downloads in one format.
type ExportHandler struct {
	query  ConsumptionQuery
	format Format
}

// NewExportHandler constructs an export handler.
func NewExportHandler(query ConsumptionQuery, format Format) (*ExportHandler, error) {
	if query == nil {
		return nil, errors.New("reports: nil consumption query")
	}
	switch format {
	case FormatXLSX, FormatPDF:
	default:
		return nil, fmt.Errorf("reports: unsupported format %q", format)
	}
	return &ExportHandler{query: query, format: format}, nil
}

// ServeHTTP handles GET ?deviceId=&from=&to= report downloads.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rawDevice := r.URL.Query().Get("deviceId")
	deviceID, err := uuid.Parse(rawDevice)
	if err != nil {
		http.Error(w, "bad deviceId", http.StatusBadRequest)
		return
	}
	from := parseMillis(r.URL.Query().Get("from"), 0)
	to := parseMillis(r.URL.Query().Get("to"), time.Now().UTC().UnixMilli())

	aggregates, err := h.query.ListByDevice(r.Context(), deviceID, from, to)
	if err != nil {
		http.Error(w, "query consumption error", http.StatusInternalServerError)
		return
	}

	var (
		data        []byte
		contentType string
		filename    string
	)
	switch h.format {
	case FormatXLSX:
		data, err = BuildConsumptionXLSX(deviceID, aggregates)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = fmt.Sprintf("consumption-%s.xlsx", deviceID)
	case FormatPDF:
		data, err = BuildConsumptionPDF(deviceID, aggregates)
		contentType = "application/pdf"
		filename = fmt.Sprintf("consumption-%s.pdf", deviceID)
	}
	if err != nil {
		http.Error(w, "build report error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}

func parseMillis(raw string, fallback int64) int64 {
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}
