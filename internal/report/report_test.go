package report

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forest-guardian/vegetation-report/internal/history"
	"github.com/forest-guardian/vegetation-report/internal/state"
	"github.com/forest-guardian/vegetation-report/internal/timeframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rsc.io/pdf"
)

func writeMap(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 248, 175))
	for y := 0; y < 175; y++ {
		for x := 0; x < 248; x++ {
			img.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "growth_decline.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
	return path
}

func pageText(p pdf.Page) string {
	var b strings.Builder
	for _, text := range p.Content().Text {
		b.WriteString(text.S)
	}
	return strings.ReplaceAll(b.String(), " ", "")
}

func testDocument(t *testing.T) Document {
	return Document{
		Window:      timeframe.Window{Name: "one_year"},
		Observation: state.Observation{LatestImageDate: "2024-04-28", FirstImageDate: "2023-05-02", VegetationAreaChange: 1250},
		MapPath:     writeMap(t),
		GeneratedAt: time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC),
	}
}

func TestPDFWriter_SinglePage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "result", "report.pdf")
	require.NoError(t, NewPDFWriter().Write(testDocument(t), out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "%PDF-"))

	doc, err := pdf.Open(out)
	require.NoError(t, err)
	require.Equal(t, 1, doc.NumPage())
	assert.Contains(t, pageText(doc.Page(1)), "Vegetationareachange:1250m")
}

func TestPDFWriter_HistoryPage(t *testing.T) {
	d := testDocument(t)
	d.History = []history.Entry{
		{Timeframe: "one_year", FirstImage: "2022-05-02", LatestImage: "2023-04-30", VegetationAreaChange: -25000, GeneratedAt: d.GeneratedAt.AddDate(-1, 0, 0)},
		{Timeframe: "one_year", FirstImage: "2023-05-02", LatestImage: "2024-04-28", VegetationAreaChange: 1250, GeneratedAt: d.GeneratedAt},
	}
	out := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, NewPDFWriter().Write(d, out))

	doc, err := pdf.Open(out)
	require.NoError(t, err)
	require.Equal(t, 2, doc.NumPage())
	text := pageText(doc.Page(2))
	assert.Contains(t, text, "2023-04-30")
	assert.Contains(t, text, "-2.50ha")
}

func TestPDFWriter_RequiresMap(t *testing.T) {
	d := testDocument(t)
	d.MapPath = filepath.Join(t.TempDir(), "missing.jpg")
	err := NewPDFWriter().Write(d, filepath.Join(t.TempDir(), "report.pdf"))
	require.Error(t, err)
}

func TestFormatArea(t *testing.T) {
	assert.Equal(t, "850 m²", FormatArea(850))
	assert.Equal(t, "-1.50 ha", FormatArea(-15000))
}
