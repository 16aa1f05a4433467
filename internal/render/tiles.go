package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/forest-guardian/vegetation-report/internal/cache"
	"github.com/gammazero/workerpool"
	"github.com/paulmach/orb/maptile"
	"github.com/schollz/progressbar/v3"
)

// TileSource provides decoded basemap tiles. Tiles that cannot be fetched are left out.
type TileSource interface {
	Tiles(ctx context.Context, tiles []maptile.Tile) map[maptile.Tile]image.Image
}

// HTTPTileSource downloads XYZ tiles in parallel and keeps the raw bytes in a file cache.
type HTTPTileSource struct {
	basemap  Basemap
	client   *http.Client
	cache    cache.CacheService[[]byte]
	workers  int
	progress io.Writer
}

func NewHTTPTileSource(basemap Basemap, client *http.Client, tileCache cache.CacheService[[]byte], workers int, progress io.Writer) *HTTPTileSource {
	if client == nil {
		client = http.DefaultClient
	}
	if workers <= 0 {
		workers = 8
	}
	if progress == nil {
		progress = io.Discard
	}
	return &HTTPTileSource{basemap: basemap, client: client, cache: tileCache, workers: workers, progress: progress}
}

func (s *HTTPTileSource) Tiles(ctx context.Context, tiles []maptile.Tile) map[maptile.Tile]image.Image {
	out := make(map[maptile.Tile]image.Image, len(tiles))
	var mu sync.Mutex

	bar := progressbar.NewOptions(len(tiles),
		progressbar.OptionSetWriter(s.progress),
		progressbar.OptionSetDescription(fmt.Sprintf("Fetching %s tiles", s.basemap.Name)),
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	wp := workerpool.New(s.workers)
	for _, t := range tiles {
		t := t
		wp.Submit(func() {
			defer bar.Add(1)
			img, err := s.tile(ctx, t)
			if err != nil {
				slog.Warn("Basemap tile unavailable",
					slog.String("tile", fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)),
					slog.String("error", err.Error()))
				return
			}
			mu.Lock()
			out[t] = img
			mu.Unlock()
		})
	}
	wp.StopWait()

	return out
}

func (s *HTTPTileSource) tile(ctx context.Context, t maptile.Tile) (image.Image, error) {
	var key string
	if s.cache != nil {
		key = s.cache.GenerateKey(s.basemap.URL, t.Z, t.X, t.Y)
		if data, ok := s.cache.Get(key); ok {
			img, _, err := image.Decode(bytes.NewReader(data))
			if err == nil {
				return img, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.basemap.TileURL(t), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "vegetation-report")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(key, data); err != nil {
			slog.Debug("Failed to cache tile", slog.String("error", err.Error()))
		}
	}
	return img, nil
}
