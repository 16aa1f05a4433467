package render

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const tileSize = 256

// Viewport places a web mercator canvas of Width x Height pixels at a zoom level.
type Viewport struct {
	Zoom    maptile.Zoom
	OriginX float64
	OriginY float64
	Width   int
	Height  int
}

func worldPixel(p orb.Point, z maptile.Zoom) (float64, float64) {
	scale := tileSize * math.Exp2(float64(z))
	x := (p.Lon() + 180) / 360 * scale

	sin := math.Sin(p.Lat() * math.Pi / 180)
	sin = math.Min(math.Max(sin, -0.9999), 0.9999)
	y := (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * scale
	return x, y
}

// FitViewport picks the largest zoom, up to maxZoom, at which the bound fits inside the
// canvas minus padding on every side, and centers the bound.
func FitViewport(b orb.Bound, width, height, padding int, maxZoom maptile.Zoom) Viewport {
	innerW := float64(width - 2*padding)
	innerH := float64(height - 2*padding)

	zoom := maptile.Zoom(0)
	for z := maxZoom; ; z-- {
		minX, maxY := worldPixel(b.Min, z)
		maxX, minY := worldPixel(b.Max, z)
		if maxX-minX <= innerW && maxY-minY <= innerH {
			zoom = z
			break
		}
		if z == 0 {
			break
		}
	}

	minX, maxY := worldPixel(b.Min, zoom)
	maxX, minY := worldPixel(b.Max, zoom)
	cx, cy := (minX+maxX)/2, (minY+maxY)/2

	return Viewport{
		Zoom:    zoom,
		OriginX: cx - float64(width)/2,
		OriginY: cy - float64(height)/2,
		Width:   width,
		Height:  height,
	}
}

// Project converts a lon/lat point into canvas pixel coordinates.
func (v Viewport) Project(p orb.Point) (float64, float64) {
	x, y := worldPixel(p, v.Zoom)
	return x - v.OriginX, y - v.OriginY
}

// Tiles lists the tiles that intersect the canvas.
func (v Viewport) Tiles() []maptile.Tile {
	maxIndex := int(math.Exp2(float64(v.Zoom))) - 1
	clamp := func(i int) int {
		if i < 0 {
			return 0
		}
		if i > maxIndex {
			return maxIndex
		}
		return i
	}

	x0 := clamp(int(math.Floor(v.OriginX / tileSize)))
	y0 := clamp(int(math.Floor(v.OriginY / tileSize)))
	x1 := clamp(int(math.Floor((v.OriginX + float64(v.Width) - 1) / tileSize)))
	y1 := clamp(int(math.Floor((v.OriginY + float64(v.Height) - 1) / tileSize)))

	tiles := make([]maptile.Tile, 0, (x1-x0+1)*(y1-y0+1))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			tiles = append(tiles, maptile.New(uint32(x), uint32(y), v.Zoom))
		}
	}
	return tiles
}

// TileOffset is where the top-left corner of a tile lands on the canvas.
func (v Viewport) TileOffset(t maptile.Tile) (int, int) {
	return int(math.Round(float64(t.X)*tileSize - v.OriginX)), int(math.Round(float64(t.Y)*tileSize - v.OriginY))
}
