package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/forest-guardian/vegetation-report/internal/timeframe"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	catalogSearchPath = "/api/v1/catalog/1.0.0/search"
	catalogPageLimit  = 100
	// maxCatalogPages bounds pagination in case the server keeps returning a next token.
	maxCatalogPages = 100
)

type catalogSearch struct {
	BBox        [4]float64 `json:"bbox"`
	Datetime    string     `json:"datetime"`
	Collections []string   `json:"collections"`
	Limit       int        `json:"limit"`
	Filter      string     `json:"filter"`
	FilterLang  string     `json:"filter-lang"`
	Next        *int       `json:"next,omitempty"`
}

type catalogContext struct {
	Context struct {
		Next     *int `json:"next"`
		Returned int  `json:"returned"`
	} `json:"context"`
}

// SearchAcquisitions lists the calendar days, in ascending order, on which the collection
// has an acquisition over the bound with cloud cover below the configured maximum.
// Acquisitions outside [window.Start, window.End) are dropped.
func (c *Client) SearchAcquisitions(ctx context.Context, bound orb.Bound, window timeframe.Window) ([]time.Time, error) {
	search := catalogSearch{
		BBox:        [4]float64{bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat()},
		Datetime:    window.Start.UTC().Format(time.RFC3339) + "/" + window.End.UTC().Format(time.RFC3339),
		Collections: []string{c.cfg.Collection},
		Limit:       catalogPageLimit,
		Filter:      fmt.Sprintf("eo:cloud_cover < %g", c.cfg.MaxCloudCover),
		FilterLang:  "cql2-text",
	}

	days := make(map[time.Time]struct{})
	for page := 0; page < maxCatalogPages; page++ {
		payload, err := json.Marshal(search)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalog search: %w", err)
		}
		body, err := c.post(ctx, catalogSearchPath, "application/geo+json", payload)
		if err != nil {
			return nil, fmt.Errorf("catalog search failed: %w", err)
		}

		fc, err := geojson.UnmarshalFeatureCollection(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse catalog response: %w", err)
		}
		for _, f := range fc.Features {
			acquired, err := acquisitionTime(f)
			if err != nil {
				return nil, err
			}
			if acquired.Before(window.Start) || !acquired.Before(window.End) {
				continue
			}
			days[truncateToDay(acquired)] = struct{}{}
		}

		var meta catalogContext
		if err := json.Unmarshal(body, &meta); err != nil {
			return nil, fmt.Errorf("failed to parse catalog context: %w", err)
		}
		if meta.Context.Next == nil || len(fc.Features) == 0 {
			break
		}
		search.Next = meta.Context.Next
	}

	out := make([]time.Time, 0, len(days))
	for d := range days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func acquisitionTime(f *geojson.Feature) (time.Time, error) {
	raw, ok := f.Properties["datetime"].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("catalog item %v has no datetime", f.ID)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("catalog item %v has invalid datetime %q: %w", f.ID, raw, err)
	}
	return t.UTC(), nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
