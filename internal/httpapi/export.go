package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
)

var locationExportHeader = []string{
	"Device ID",
	"Type",
	"Latitude",
	"Longitude",
	"Accuracy (m)",
	"Battery %",
	"Questionnaire",
	"Timestamp",
	"Last Seen",
}

// ExportLocations handles GET /api/locations/export: the same merged view
// as /api/locations, rendered as an Excel workbook for field coordinators.
func (a *API) ExportLocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	hours := parseInt(r.URL.Query().Get("hours"), defaultLocationHours)
	limit := parseInt(r.URL.Query().Get("limit"), defaultLocationLimit)

	locations, err := a.merger.Latest(r.Context(), hours, limit)
	if err != nil {
		a.logger.Error("Failed to merge latest locations for export", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	data, err := generateLocationExport(locations)
	if err != nil {
		a.logger.Error("Failed to generate export workbook", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate export")
		return
	}

	filename := fmt.Sprintf("latest-locations-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func generateLocationExport(locations []models.LatestLocation) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, so Close only on the error paths.

	sheetName := "Latest Locations"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, h := range locationExportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(locationExportHeader), 1)
	_ = f.SetCellStyle(sheetName, "A1", lastCol, headerStyle)
	_ = f.SetColWidth(sheetName, "A", "I", 18)
	_ = f.SetPanes(sheetName, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	})

	for i, loc := range locations {
		row := i + 2
		values := []any{
			loc.DeviceID,
			loc.Type,
			loc.Latitude,
			loc.Longitude,
			loc.Accuracy,
			loc.BatteryPercentage,
			loc.QuestionnaireData,
			loc.Timestamp.Format(time.RFC3339),
			loc.LastSeen.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}
