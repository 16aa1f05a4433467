package analysis

import (
	"errors"
	"fmt"
	"math"
)

// VegetationThreshold is the NDVI value from which a pixel counts as vegetation.
const VegetationThreshold = 0.2

var ErrShapeMismatch = errors.New("grids have different shapes")

// Grid is a row-major raster of float values.
type Grid struct {
	Width  int
	Height int
	Data   []float64
}

func NewGrid(width, height int) *Grid {
	return &Grid{Width: width, Height: height, Data: make([]float64, width*height)}
}

func (g *Grid) At(x, y int) float64 {
	return g.Data[y*g.Width+x]
}

func (g *Grid) Set(x, y int, v float64) {
	g.Data[y*g.Width+x] = v
}

func (g *Grid) sameShape(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height && len(g.Data) == len(o.Data)
}

// Bands holds the Sentinel-2 bands needed for NDVI, plus the data mask (1 inside the AOI).
type Bands struct {
	Red      *Grid
	NIR      *Grid
	DataMask *Grid
}

func safeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// NDVI computes (NIR-Red)/(NIR+Red). Pixels outside the data mask are NaN.
func NDVI(b Bands) (*Grid, error) {
	if b.Red == nil || b.NIR == nil {
		return nil, errors.New("red and nir bands are required")
	}
	if !b.Red.sameShape(b.NIR) || (b.DataMask != nil && !b.Red.sameShape(b.DataMask)) {
		return nil, ErrShapeMismatch
	}

	out := NewGrid(b.Red.Width, b.Red.Height)
	for i := range out.Data {
		if b.DataMask != nil && b.DataMask.Data[i] == 0 {
			out.Data[i] = math.NaN()
			continue
		}
		red, nir := b.Red.Data[i], b.NIR.Data[i]
		out.Data[i] = safeDivide(nir-red, nir+red)
	}
	return out, nil
}

// IsVegetation reports whether an NDVI value passes the threshold. NaN never does.
func IsVegetation(ndvi float64) bool {
	return !math.IsNaN(ndvi) && ndvi >= VegetationThreshold
}

// VegetationPixels counts vegetation pixels of an NDVI grid.
func VegetationPixels(ndvi *Grid) int {
	count := 0
	for _, v := range ndvi.Data {
		if IsVegetation(v) {
			count++
		}
	}
	return count
}

// VegetationArea is the vegetation pixel count times the area of one pixel.
func VegetationArea(ndvi *Grid, pixelArea float64) float64 {
	return float64(VegetationPixels(ndvi)) * pixelArea
}

// AreaChange is the vegetation area of the first acquisition minus the one of the latest.
// A positive value means vegetation was lost.
func AreaChange(first, latest *Grid, pixelArea float64) (float64, error) {
	if !first.sameShape(latest) {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, first.Width, first.Height, latest.Width, latest.Height)
	}
	return VegetationArea(first, pixelArea) - VegetationArea(latest, pixelArea), nil
}

// Change values of a growth/decline grid.
const (
	Decline = -1
	Stable  = 0
	Growth  = 1
)

// ChangeGrid subtracts the vegetation mask of the first acquisition from the latest one.
// Cells become Growth, Decline or Stable.
func ChangeGrid(first, latest *Grid) (*Grid, error) {
	if !first.sameShape(latest) {
		return nil, ErrShapeMismatch
	}
	out := NewGrid(first.Width, first.Height)
	for i := range out.Data {
		out.Data[i] = threshold(latest.Data[i]) - threshold(first.Data[i])
	}
	return out, nil
}

func threshold(ndvi float64) float64 {
	if IsVegetation(ndvi) {
		return 1
	}
	return 0
}

// ChangeSummary counts growth and decline cells of a change grid.
type ChangeSummary struct {
	Growth  int
	Decline int
}

func Summarize(change *Grid) ChangeSummary {
	var s ChangeSummary
	for _, v := range change.Data {
		switch v {
		case Growth:
			s.Growth++
		case Decline:
			s.Decline++
		}
	}
	return s
}
