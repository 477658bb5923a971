// Package report assembles operator-facing documents: PDF prediction reports
// and XLSX history workbooks.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// Layout constants for the A4 report page, in millimeters.
const (
	pageMarginLeft   = 15.0
	pageMarginTop    = 15.0
	pageMarginBottom = 20.0
	contentWidth     = 180.0

	rowHeight     = 7.0
	sectionGap    = 6.0
	headingHeight = 9.0
	chartHeight   = 90.0

	// minimum remaining space before a section starts on a fresh page
	minSectionSpace = 30.0
)

// Field is one labeled value in a report section.
type Field struct {
	Label string
	Value string
}

// Report is a capability's prediction rendered as a paginated document.
type Report struct {
	Capability  string
	GeneratedAt time.Time
	Inputs      []Field
	Results     []Field
	SpikeAlert  string
	Explanation string
	// Chart is the synthesized dose sensitivity series drawn as a line chart.
	Chart []models.ChartPoint
	// ChartPNG is a UI-supplied rendering; when present it replaces the
	// drawn series.
	ChartPNG []byte
	History  []models.HistoryPoint
	// HistoryValueHeader labels the predicted-value column of the history
	// table (settled pH, final pH, settled turbidity).
	HistoryValueHeader string
}

// FileName returns the download name, e.g. "Pre-Lime_Report_2026-08-31.pdf".
func (r Report) FileName() string {
	capability := strings.ReplaceAll(strings.TrimSpace(r.Capability), " ", "-")
	if capability == "" {
		capability = "Prediction"
	}
	return fmt.Sprintf("%s_Report_%s.pdf", capability, r.GeneratedAt.Format("2006-01-02"))
}

// Generate renders the report into w. Sections never straddle a clip: when
// the remaining vertical space is too small for the next section it starts
// on a new page instead.
func (r Report) Generate(w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMarginLeft, pageMarginTop, pageMarginLeft)
	pdf.SetAutoPageBreak(true, pageMarginBottom)
	pdf.AddPage()

	r.renderTitle(pdf)
	r.renderSpikeAlert(pdf)
	r.renderFields(pdf, "Water Sample Inputs", r.Inputs)
	r.renderFields(pdf, "Prediction Results", r.Results)
	r.renderExplanation(pdf)
	r.renderChart(pdf)
	r.renderHistory(pdf)

	if pdf.Err() {
		return fmt.Errorf("failed to render report: %w", pdf.Error())
	}
	return pdf.Output(w)
}

func (r Report) renderTitle(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(contentWidth, 12, fmt.Sprintf("%s Dosing Report", r.Capability), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(contentWidth, 6, "HydroDose Operator Console", "", 1, "C", false, 0, "")
	pdf.CellFormat(contentWidth, 6, "Generated: "+r.GeneratedAt.Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(sectionGap)
}

func (r Report) renderSpikeAlert(pdf *fpdf.Fpdf) {
	if r.SpikeAlert == "" {
		return
	}
	ensureSpace(pdf, headingHeight+rowHeight)

	pdf.SetFillColor(220, 53, 69)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.MultiCell(contentWidth, 8, "pH SPIKE ALERT: "+r.SpikeAlert, "1", "C", true)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(sectionGap)
}

func (r Report) renderFields(pdf *fpdf.Fpdf, heading string, fields []Field) {
	if len(fields) == 0 {
		return
	}
	ensureSpace(pdf, headingHeight+float64(len(fields))*rowHeight)
	renderHeading(pdf, heading)

	pdf.SetFont("Helvetica", "", 10)
	for i, field := range fields {
		if i%2 == 0 {
			pdf.SetFillColor(245, 247, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.CellFormat(70, rowHeight, field.Label, "1", 0, "L", true, 0, "")
		pdf.CellFormat(contentWidth-70, rowHeight, field.Value, "1", 1, "L", true, 0, "")
	}
	pdf.Ln(sectionGap)
}

func (r Report) renderExplanation(pdf *fpdf.Fpdf) {
	if r.Explanation == "" {
		return
	}
	ensureSpace(pdf, minSectionSpace)
	renderHeading(pdf, "Explanation")

	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(contentWidth, 5.5, r.Explanation, "", "L", false)
	pdf.Ln(sectionGap)
}

func (r Report) renderChart(pdf *fpdf.Fpdf) {
	switch {
	case len(r.ChartPNG) > 0:
		r.renderChartImage(pdf)
	case len(r.Chart) > 1:
		r.renderChartCurve(pdf)
	}
}

func (r Report) renderChartImage(pdf *fpdf.Fpdf) {
	ensureSpace(pdf, headingHeight+chartHeight)
	renderHeading(pdf, "Dose Response Curve")

	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("dose-chart", opts, bytes.NewReader(r.ChartPNG))
	pdf.ImageOptions("dose-chart", pageMarginLeft, pdf.GetY(), contentWidth, 0, true, opts, 0, "")
	pdf.Ln(sectionGap)
}

// renderChartCurve draws the synthesized dose sensitivity series as a simple
// line chart with the recommended dose marked.
func (r Report) renderChartCurve(pdf *fpdf.Fpdf) {
	ensureSpace(pdf, headingHeight+chartHeight)
	renderHeading(pdf, "Dose Response Curve")

	const (
		plotLeft   = pageMarginLeft + 14
		plotWidth  = contentWidth - 24
		plotHeight = chartHeight - 20
	)
	plotTop := pdf.GetY() + 4

	minDose, maxDose := r.Chart[0].Dose, r.Chart[0].Dose
	minVal, maxVal := r.Chart[0].Value, r.Chart[0].Value
	for _, p := range r.Chart[1:] {
		if p.Dose < minDose {
			minDose = p.Dose
		}
		if p.Dose > maxDose {
			maxDose = p.Dose
		}
		if p.Value < minVal {
			minVal = p.Value
		}
		if p.Value > maxVal {
			maxVal = p.Value
		}
	}
	if maxDose == minDose {
		maxDose = minDose + 1
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}

	x := func(dose float64) float64 {
		return plotLeft + (dose-minDose)/(maxDose-minDose)*plotWidth
	}
	y := func(value float64) float64 {
		return plotTop + plotHeight - (value-minVal)/(maxVal-minVal)*plotHeight
	}

	// axes
	pdf.SetDrawColor(120, 120, 120)
	pdf.Line(plotLeft, plotTop, plotLeft, plotTop+plotHeight)
	pdf.Line(plotLeft, plotTop+plotHeight, plotLeft+plotWidth, plotTop+plotHeight)

	// curve
	pdf.SetDrawColor(41, 128, 185)
	pdf.SetLineWidth(0.5)
	for i := 1; i < len(r.Chart); i++ {
		a, b := r.Chart[i-1], r.Chart[i]
		pdf.Line(x(a.Dose), y(a.Value), x(b.Dose), y(b.Value))
	}
	pdf.SetLineWidth(0.2)

	// recommended dose marker
	for _, p := range r.Chart {
		if p.RecommendedPoint != nil {
			pdf.SetFillColor(220, 53, 69)
			pdf.Circle(x(p.Dose), y(*p.RecommendedPoint), 1.5, "F")
		}
	}

	// axis extents
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(100, 100, 100)
	pdf.Text(plotLeft, plotTop+plotHeight+5, fmt.Sprintf("%.1f", minDose))
	pdf.Text(plotLeft+plotWidth-8, plotTop+plotHeight+5, fmt.Sprintf("%.1f", maxDose))
	pdf.Text(plotLeft-13, y(minVal), fmt.Sprintf("%.2f", minVal))
	pdf.Text(plotLeft-13, y(maxVal), fmt.Sprintf("%.2f", maxVal))
	pdf.SetTextColor(0, 0, 0)

	pdf.SetY(plotTop + plotHeight + 8)
	pdf.Ln(sectionGap)
}

func (r Report) renderHistory(pdf *fpdf.Fpdf) {
	if len(r.History) == 0 {
		return
	}
	ensureSpace(pdf, headingHeight+2*rowHeight)
	renderHeading(pdf, "Recent Prediction History")

	valueHeader := r.HistoryValueHeader
	if valueHeader == "" {
		valueHeader = "Predicted Value"
	}

	headers := []struct {
		label string
		width float64
	}{
		{"Time", 40},
		{"pH", 25},
		{"Turbidity", 30},
		{"Conductivity", 30},
		{"Dose (ppm)", 25},
		{valueHeader, 30},
	}

	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(52, 73, 94)
		pdf.SetTextColor(255, 255, 255)
		for _, h := range headers {
			pdf.CellFormat(h.width, rowHeight, h.label, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 9)
	}
	writeHeader()

	for i, point := range r.History {
		// repeat the header after a page break mid-table
		if remainingSpace(pdf) < rowHeight {
			pdf.AddPage()
			writeHeader()
		}
		if i%2 == 0 {
			pdf.SetFillColor(245, 247, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.CellFormat(40, rowHeight, point.CreatedAt.Format("01-02 15:04"), "1", 0, "C", true, 0, "")
		pdf.CellFormat(25, rowHeight, fmt.Sprintf("%.2f", point.RawInputs.Ph), "1", 0, "C", true, 0, "")
		pdf.CellFormat(30, rowHeight, fmt.Sprintf("%.2f", point.RawInputs.Turbidity), "1", 0, "C", true, 0, "")
		pdf.CellFormat(30, rowHeight, fmt.Sprintf("%.0f", point.RawInputs.Conductivity), "1", 0, "C", true, 0, "")
		pdf.CellFormat(25, rowHeight, fmt.Sprintf("%.2f", point.RecommendedDose), "1", 0, "C", true, 0, "")
		pdf.CellFormat(30, rowHeight, fmt.Sprintf("%.2f", point.PredictedValue), "1", 0, "C", true, 0, "")
		pdf.Ln(-1)
	}
}

func renderHeading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(52, 73, 94)
	pdf.CellFormat(contentWidth, headingHeight, text, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// ensureSpace starts a new page when fewer than needed millimeters remain.
func ensureSpace(pdf *fpdf.Fpdf, needed float64) {
	if remainingSpace(pdf) < needed {
		pdf.AddPage()
	}
}

func remainingSpace(pdf *fpdf.Fpdf) float64 {
	_, pageHeight := pdf.GetPageSize()
	return pageHeight - pageMarginBottom - pdf.GetY()
}
