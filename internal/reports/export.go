package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	telemetry "gridwatch/internal/telemetry/domain"
)

const windowLayout = "2006-01-02 15:04"

// BuildConsumptionPDF renders a minimal PDF report of a device's
// persisted hourly aggregates.
func BuildConsumptionPDF(deviceID uuid.UUID, aggregates []telemetry.HourlyAggregate) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Hourly Consumption Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", deviceID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Windows: %d", len(aggregates)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Window Start (UTC)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Total Consumption (kW)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, aggregate := range aggregates {
		start := time.UnixMilli(aggregate.WindowStart).UTC()
		pdf.CellFormat(70, 6, start.Format(windowLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, fmt.Sprintf("%.2f", aggregate.TotalConsumption), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildConsumptionXLSX renders an XLSX report of a device's persisted
// hourly aggregates.
func BuildConsumptionXLSX(deviceID uuid.UUID, aggregates []telemetry.HourlyAggregate) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "consumption"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Device")
	_ = f.SetCellValue(sheet, "B1", deviceID.String())
	_ = f.SetCellValue(sheet, "A3", "Window Start (UTC)")
	_ = f.SetCellValue(sheet, "B3", "Total Consumption (kW)")
	for i, aggregate := range aggregates {
		row := i + 4
		start := time.UnixMilli(aggregate.WindowStart).UTC()
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), start.Format(windowLayout))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), aggregate.TotalConsumption)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
