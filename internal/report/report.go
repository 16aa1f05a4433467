package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/vegetation-report/internal/history"
	"github.com/forest-guardian/vegetation-report/internal/state"
	"github.com/forest-guardian/vegetation-report/internal/timeframe"
	"github.com/go-pdf/fpdf"
)

// Map placement on the first page, in millimetres. The size is the rendered map in
// pixels divided by ten.
const (
	mapX      = 10.0
	mapY      = 20.0
	mapWidth  = 248.0
	mapHeight = 174.8
)

// Document is everything printed in a report.
type Document struct {
	Window      timeframe.Window
	Observation state.Observation
	MapPath     string
	History     []history.Entry
	GeneratedAt time.Time
}

// PDFWriter lays out reports on landscape A4 pages.
type PDFWriter struct {
	FontFamily string
	FontSize   float64
}

func NewPDFWriter() *PDFWriter {
	return &PDFWriter{FontFamily: "Arial", FontSize: 12}
}

// Write renders doc to path. The history table goes on a second page when there is one.
func (w *PDFWriter) Write(doc Document, path string) error {
	if doc.MapPath == "" {
		return errors.New("report: map image is required")
	}
	if _, err := os.Stat(doc.MapPath); err != nil {
		return fmt.Errorf("report: map image: %w", err)
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Vegetation report %s", doc.Window.Name), true)
	pdf.SetCreationDate(doc.GeneratedAt)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont(w.FontFamily, "", w.FontSize)
	pdf.Cell(10, 10, tr(fmt.Sprintf("Vegetation area change: %s", FormatArea(doc.Observation.VegetationAreaChange))))
	pdf.SetFont(w.FontFamily, "", w.FontSize-3)
	pdf.SetXY(150, 10)
	pdf.CellFormat(137, 10, fmt.Sprintf("%s | first image %s | latest image %s",
		doc.Window.Name, doc.Observation.FirstImageDate, doc.Observation.LatestImageDate), "", 0, "R", false, 0, "")

	pdf.ImageOptions(doc.MapPath, mapX, mapY, mapWidth, mapHeight, false, fpdf.ImageOptions{ImageType: "JPG"}, 0, "")

	if len(doc.History) > 0 {
		w.historyPage(pdf, tr, doc)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to lay out report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (w *PDFWriter) historyPage(pdf *fpdf.Fpdf, tr func(string) string, doc Document) {
	pdf.AddPage()
	pdf.SetFont(w.FontFamily, "B", w.FontSize)
	pdf.Cell(0, 10, fmt.Sprintf("Change over time (%s)", doc.Window.Name))
	pdf.Ln(12)

	headers := []string{"Generated", "First image", "Latest image", "Vegetation area change"}
	widths := []float64{60, 50, 50, 90}

	pdf.SetFont(w.FontFamily, "B", w.FontSize-2)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(w.FontFamily, "", w.FontSize-2)
	for _, e := range doc.History {
		pdf.CellFormat(widths[0], 7, e.GeneratedAt.UTC().Format("2006-01-02 15:04"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, e.FirstImage, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, e.LatestImage, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 7, tr(FormatArea(e.VegetationAreaChange)), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
}

// FormatArea prints square metres, switching to hectares from one hectare up.
func FormatArea(m2 float64) string {
	abs := m2
	if abs < 0 {
		abs = -abs
	}
	if abs >= 10000 {
		return fmt.Sprintf("%.2f ha", m2/10000)
	}
	return fmt.Sprintf("%.0f m²", m2)
}
