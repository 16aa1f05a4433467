package raster

import (
	"fmt"
	"os"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/vegetation-report/internal/analysis"
)

// BandOrder is the order of bands in the GeoTIFFs requested from the process API.
var BandOrder = []string{"B04", "B08", "dataMask"}

// GodalDecoder reads GeoTIFF responses with GDAL.
type GodalDecoder struct{}

func NewGodalDecoder() *GodalDecoder {
	godal.RegisterAll()
	return &GodalDecoder{}
}

// DecodeFile opens a GeoTIFF and returns its red, nir and mask bands.
func (d *GodalDecoder) DecodeFile(path string) (analysis.Bands, error) {
	if _, err := os.Stat(path); err != nil {
		return analysis.Bands{}, fmt.Errorf("failed to open TIFF file: %w", err)
	}

	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal: %s", msg)
	}))
	if err != nil {
		return analysis.Bands{}, fmt.Errorf("failed to open TIFF file %s: %w", path, err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) < len(BandOrder) {
		return analysis.Bands{}, fmt.Errorf("expected %d bands in %s, got %d", len(BandOrder), path, len(bands))
	}

	width := ds.Structure().SizeX
	height := ds.Structure().SizeY
	grids := make([]*analysis.Grid, len(BandOrder))
	for i, name := range BandOrder {
		g := analysis.NewGrid(width, height)
		for y := 0; y < height; y++ {
			row := g.Data[y*width : (y+1)*width]
			if err := bands[i].Read(0, y, row, width, 1); err != nil {
				return analysis.Bands{}, fmt.Errorf("failed to read data for band %s: %w", name, err)
			}
		}
		grids[i] = g
	}

	return analysis.Bands{Red: grids[0], NIR: grids[1], DataMask: grids[2]}, nil
}
