package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/vegetation-report/internal/analysis"
	"github.com/forest-guardian/vegetation-report/internal/aoi"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	processPath = "/api/v1/process"
	maxPixels   = 2500
)

const evalscript = `
//VERSION=3
function setup() {
  return {
    input: [{bands: ["B04", "B08", "dataMask"]}],
    output: {
      id: "default",
      bands: 3,
      sampleType: SampleType.FLOAT32,
    },
  }
}

function evaluatePixel(sample) {
  return [sample.B04, sample.B08, sample.dataMask];
}
`

func calculatePixels(distance float64, resolution float64) int {
	pixels := distance * (111_000.0 / resolution)
	if pixels < 1 {
		return 1
	}
	if pixels > maxPixels {
		return maxPixels
	}
	return int(pixels)
}

// RasterSize is the width and height requested for a bound.
func (c *Client) RasterSize(bound orb.Bound) (int, int) {
	return calculatePixels(bound.Max.Lon()-bound.Min.Lon(), c.cfg.Resolution),
		calculatePixels(bound.Max.Lat()-bound.Min.Lat(), c.cfg.Resolution)
}

// PixelArea is the ground area of one raster pixel in square meters.
func PixelArea(bound orb.Bound, width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	return geo.Area(bound.ToPolygon()) / float64(width*height)
}

func (c *Client) imagePath(area *aoi.Area, day time.Time) string {
	return filepath.Join(c.cfg.ImageDir, area.Key(), fmt.Sprintf("%s_%s.tif", c.cfg.Collection, day.Format("2006-01-02")))
}

// FetchBands downloads the acquisition of one day over the AOI, or reuses the copy
// already on disk, and decodes it.
func (c *Client) FetchBands(ctx context.Context, area *aoi.Area, day time.Time) (analysis.Bands, error) {
	fileName := c.imagePath(area, day)
	if _, err := os.Stat(fileName); err == nil {
		slog.Debug("Using cached image", slog.String("path", fileName))
		return c.decoder.DecodeFile(fileName)
	}

	geometry, err := area.GeoJSON()
	if err != nil {
		return analysis.Bands{}, fmt.Errorf("failed to export geometry to GeoJSON: %w", err)
	}
	width, height := c.RasterSize(area.Bound())

	dayStart := truncateToDay(day)
	dayEnd := dayStart.Add(time.Hour*23 + time.Minute*59 + time.Second*59)

	requestPayload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"geometry": json.RawMessage(geometry),
			},
			"data": []map[string]interface{}{
				{
					"type": c.cfg.Collection,
					"dataFilter": map[string]interface{}{
						"timeRange": map[string]string{
							"from": dayStart.Format(time.RFC3339),
							"to":   dayEnd.Format(time.RFC3339),
						},
						"maxCloudCoverage": c.cfg.MaxCloudCover,
						"mosaickingOrder":  "leastCC",
					},
				},
			},
		},
		"output": map[string]interface{}{
			"width":  width,
			"height": height,
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format": map[string]string{
						"type": "image/tiff",
					},
				},
			},
		},
		"evalscript": evalscript,
	}

	requestBody, err := json.Marshal(requestPayload)
	if err != nil {
		return analysis.Bands{}, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	slog.Info("Requesting image", slog.String("date", dayStart.Format("2006-01-02")), slog.Int("width", width), slog.Int("height", height))
	imageBytes, err := c.post(ctx, processPath, "image/tiff", requestBody)
	if err != nil {
		return analysis.Bands{}, fmt.Errorf("error requesting image for %s: %w", dayStart.Format("2006-01-02"), err)
	}

	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return analysis.Bands{}, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(fileName), err)
	}
	tmpFile := fileName + ".tmp"
	if err := os.WriteFile(tmpFile, imageBytes, 0644); err != nil {
		return analysis.Bands{}, fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmpFile, fileName); err != nil {
		os.Remove(tmpFile)
		return analysis.Bands{}, fmt.Errorf("failed to rename image file: %w", err)
	}

	return c.decoder.DecodeFile(fileName)
}
