package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forest-guardian/vegetation-report/internal/analysis"
	"github.com/forest-guardian/vegetation-report/internal/aoi"
	"github.com/forest-guardian/vegetation-report/internal/state"
	"github.com/forest-guardian/vegetation-report/internal/timeframe"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// Scene is the outcome of analysing the first and the latest acquisition of a window.
type Scene struct {
	Observation  state.Observation
	Acquisitions []time.Time
	// First and Latest are NDVI grids covering Bound.
	First     *analysis.Grid
	Latest    *analysis.Grid
	Bound     orb.Bound
	PixelArea float64
}

// Observe finds the first and latest acquisition of the window and computes the vegetation
// area change between them.
func (c *Client) Observe(ctx context.Context, area *aoi.Area, window timeframe.Window) (*Scene, error) {
	bound := area.Bound()
	days, err := c.SearchAcquisitions(ctx, bound, window)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImagery, window)
	}
	firstDay, latestDay := days[0], days[len(days)-1]
	slog.Info("Acquisitions found",
		slog.Int("count", len(days)),
		slog.String("first", firstDay.Format(state.DateLayout)),
		slog.String("latest", latestDay.Format(state.DateLayout)))

	var firstBands, latestBands analysis.Bands
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := c.FetchBands(gctx, area, firstDay)
		firstBands = b
		return err
	})
	if !latestDay.Equal(firstDay) {
		g.Go(func() error {
			b, err := c.FetchBands(gctx, area, latestDay)
			latestBands = b
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if latestDay.Equal(firstDay) {
		latestBands = firstBands
	}

	first, err := analysis.NDVI(firstBands)
	if err != nil {
		return nil, fmt.Errorf("ndvi of %s: %w", firstDay.Format(state.DateLayout), err)
	}
	latest, err := analysis.NDVI(latestBands)
	if err != nil {
		return nil, fmt.Errorf("ndvi of %s: %w", latestDay.Format(state.DateLayout), err)
	}

	pixelArea := PixelArea(bound, first.Width, first.Height)
	change, err := analysis.AreaChange(first, latest, pixelArea)
	if err != nil {
		return nil, err
	}

	return &Scene{
		Observation: state.Observation{
			LatestImageDate:      latestDay.Format(state.DateLayout),
			FirstImageDate:       firstDay.Format(state.DateLayout),
			VegetationAreaChange: change,
		},
		Acquisitions: days,
		First:        first,
		Latest:       latest,
		Bound:        bound,
		PixelArea:    pixelArea,
	}, nil
}
