package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/vegetation-report/internal/analysis"
	"github.com/forest-guardian/vegetation-report/internal/aoi"
	"github.com/golang/freetype/truetype"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	GrowthColor  = color.NRGBA{R: 0, G: 255, B: 0, A: 200}
	DeclineColor = color.NRGBA{R: 255, G: 0, B: 0, A: 200}
)

// Options control the rendered canvas. The defaults give an A5 page at 300 dpi.
type Options struct {
	Width   int
	Height  int
	Padding int
	MaxZoom maptile.Zoom
	Quality int
	Legend  bool
}

func DefaultOptions() Options {
	return Options{Width: 2480, Height: 1748, Padding: 80, MaxZoom: 18, Quality: 100, Legend: true}
}

// Request is what the map shows: the AOI outline and the growth/decline grid covering ChangeBound.
type Request struct {
	Area        *aoi.Area
	Change      *analysis.Grid
	ChangeBound orb.Bound
	Attribution string
}

// Renderer draws growth/decline maps. A nil tile source renders on a plain background.
type Renderer struct {
	opts  Options
	tiles TileSource
}

func NewRenderer(opts Options, tiles TileSource) *Renderer {
	def := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.MaxZoom == 0 {
		opts.MaxZoom = def.MaxZoom
	}
	if opts.Quality <= 0 {
		opts.Quality = def.Quality
	}
	return &Renderer{opts: opts, tiles: tiles}
}

// Render writes the map as a JPEG to outputPath.
func (r *Renderer) Render(ctx context.Context, req Request, outputPath string) error {
	if req.Area == nil {
		return errors.New("render: area is required")
	}
	vp := FitViewport(req.Area.Bound(), r.opts.Width, r.opts.Height, r.opts.Padding, r.opts.MaxZoom)
	slog.Info("Rendering map", slog.Int("zoom", int(vp.Zoom)), slog.String("path", outputPath))

	dc := gg.NewContext(r.opts.Width, r.opts.Height)
	dc.SetRGB(0.85, 0.85, 0.85)
	dc.Clear()

	if r.tiles != nil {
		tiles := vp.Tiles()
		images := r.tiles.Tiles(ctx, tiles)
		for _, t := range tiles {
			img, ok := images[t]
			if !ok {
				continue
			}
			x, y := vp.TileOffset(t)
			dc.DrawImage(img, x, y)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if req.Change != nil {
		drawChange(dc, vp, req.Change, req.ChangeBound)
	}

	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(5)
	for _, ring := range req.Area.Outlines() {
		for i, p := range ring {
			x, y := vp.Project(p)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
		dc.Stroke()
	}

	if r.opts.Legend {
		drawLegend(dc, req)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	return writeJPEG(outputPath, dc.Image(), r.opts.Quality)
}

func writeJPEG(path string, img image.Image, quality int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: quality}); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

// drawChange scales the change grid onto the canvas with nearest neighbour sampling, so
// each cell stays a solid block.
func drawChange(dc *gg.Context, vp Viewport, change *analysis.Grid, bound orb.Bound) {
	overlay := image.NewNRGBA(image.Rect(0, 0, change.Width, change.Height))
	for y := 0; y < change.Height; y++ {
		for x := 0; x < change.Width; x++ {
			switch change.At(x, y) {
			case analysis.Growth:
				overlay.SetNRGBA(x, y, GrowthColor)
			case analysis.Decline:
				overlay.SetNRGBA(x, y, DeclineColor)
			}
		}
	}

	x0, y0 := vp.Project(orb.Point{bound.Min.Lon(), bound.Max.Lat()})
	x1, y1 := vp.Project(orb.Point{bound.Max.Lon(), bound.Min.Lat()})
	dst := image.Rect(int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x1)), int(math.Round(y1)))
	if dst.Empty() {
		return
	}

	canvas, ok := dc.Image().(draw.Image)
	if !ok {
		return
	}
	draw.NearestNeighbor.Scale(canvas, dst, overlay, overlay.Bounds(), draw.Over, nil)
}

func drawLegend(dc *gg.Context, req Request) {
	size := float64(dc.Height()) / 40
	if font, err := truetype.Parse(goregular.TTF); err == nil {
		dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))
	}

	items := []struct {
		label string
		c     color.NRGBA
	}{
		{"Growth", GrowthColor},
		{"Decline", DeclineColor},
	}

	box := size
	spacing := size * 1.6
	x := size
	y := float64(dc.Height()) - size - spacing*float64(len(items))

	dc.SetRGBA(1, 1, 1, 0.8)
	dc.DrawRectangle(x-size/2, y-size/2, size*8, spacing*float64(len(items))+size/2)
	dc.Fill()

	for i, item := range items {
		iy := y + float64(i)*spacing
		dc.SetColor(item.c)
		dc.DrawRectangle(x, iy, box, box)
		dc.Fill()

		dc.SetRGB(0, 0, 0)
		dc.SetLineWidth(1)
		dc.DrawRectangle(x, iy, box, box)
		dc.Stroke()

		dc.DrawStringAnchored(item.label, x+box*1.5, iy+box/2, 0, 0.5)
	}

	if req.Attribution != "" {
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored("Map data © "+req.Attribution, float64(dc.Width())-size, float64(dc.Height())-size, 1, 0)
	}
}
