package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// HistoryExport is the prediction history gathered for an XLSX workbook.
type HistoryExport struct {
	GeneratedAt time.Time
	DateRange   string
	PreLime     []models.HistoryPoint
	PostLime    []models.HistoryPoint
	Alum        []models.HistoryPoint
}

// GenerateWorkbook builds the history workbook: a summary sheet plus one
// sheet per capability. The caller owns writing and closing the file.
func GenerateWorkbook(data HistoryExport) (*excelize.File, error) {
	f := excelize.NewFile()

	f.SetDocProps(&excelize.DocProperties{
		Category:    "HydroDose Dosing Predictions",
		Created:     data.GeneratedAt.Format(time.RFC3339),
		Creator:     "HydroDose Console",
		Description: "Coagulant and lime dosing prediction history export",
		Modified:    data.GeneratedAt.Format(time.RFC3339),
		Subject:     "Dosing Prediction History",
		Title:       "HydroDose History Export",
		Version:     "1.0",
	})

	if err := createSummarySheet(f, data); err != nil {
		return nil, fmt.Errorf("failed to build summary sheet: %w", err)
	}
	createHistorySheet(f, "Pre-Lime", "Settled pH", data.PreLime)
	createHistorySheet(f, "Post-Lime", "Final pH", data.PostLime)
	createHistorySheet(f, "Alum", "Settled Turbidity (NTU)", data.Alum)

	f.SetActiveSheet(0)
	return f, nil
}

// WorkbookFileName returns the download name for a history export.
func WorkbookFileName(generatedAt time.Time) string {
	return fmt.Sprintf("HydroDose_History_%s.xlsx", generatedAt.Format("2006-01-02"))
}

func createSummarySheet(f *excelize.File, data HistoryExport) error {
	sheetName := "Summary"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2E75B6"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetCellValue(sheetName, "A1", "HydroDose Dosing Prediction History")
	f.MergeCell(sheetName, "A1", "D1")
	f.SetCellStyle(sheetName, "A1", "D1", headerStyle)
	f.SetRowHeight(sheetName, 1, 25)

	f.SetCellValue(sheetName, "A3", "Generated At:")
	f.SetCellValue(sheetName, "B3", data.GeneratedAt.Format("2006-01-02 15:04:05"))
	f.SetCellValue(sheetName, "A4", "Date Range:")
	f.SetCellValue(sheetName, "B4", data.DateRange)

	f.SetCellValue(sheetName, "A6", "Pre-Lime Predictions:")
	f.SetCellValue(sheetName, "B6", len(data.PreLime))
	f.SetCellValue(sheetName, "A7", "Post-Lime Predictions:")
	f.SetCellValue(sheetName, "B7", len(data.PostLime))
	f.SetCellValue(sheetName, "A8", "Alum Predictions:")
	f.SetCellValue(sheetName, "B8", len(data.Alum))

	f.SetColWidth(sheetName, "A", "A", 24)
	f.SetColWidth(sheetName, "B", "D", 18)
	return nil
}

func createHistorySheet(f *excelize.File, sheetName, valueHeader string, points []models.HistoryPoint) {
	f.NewSheet(sheetName)

	headers := []string{"Timestamp", "Raw pH", "Raw Turbidity (NTU)", "Raw Conductivity (uS/cm)", "Recommended Dose (ppm)", valueHeader}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	f.SetCellStyle(sheetName, "A1", "F1", headerStyle)

	for i, point := range points {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), point.CreatedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), point.RawInputs.Ph)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), point.RawInputs.Turbidity)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), point.RawInputs.Conductivity)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), point.RecommendedDose)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), point.PredictedValue)
	}

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "F", 22)
}
