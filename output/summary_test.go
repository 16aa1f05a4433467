package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forest-guardian/vegetation-report/internal/analysis"
	"github.com/forest-guardian/vegetation-report/internal/aoi"
	"github.com/forest-guardian/vegetation-report/internal/state"
	"github.com/forest-guardian/vegetation-report/internal/timeframe"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSummary(t *testing.T) {
	area, err := aoi.Parse("DQ", []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
  "geometry":{"type":"Polygon","coordinates":[[[10,50],[11,50],[11,51],[10,51],[10,50]]]}}]}`))
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	window, err := timeframe.Resolve("two_weeks", now)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "two_weeks", "summary.geojson")
	require.NoError(t, WriteSummary(path, Summary{
		RunID:       "run-1",
		Window:      window,
		Area:        area,
		Observation: state.Observation{FirstImageDate: "2024-04-18", LatestImageDate: "2024-04-28", VegetationAreaChange: 300},
		Change:      analysis.ChangeSummary{Growth: 2, Decline: 5},
		PixelArea:   100,
		GeneratedAt: now,
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	props := fc.Features[0].Properties
	assert.Equal(t, "two_weeks", props.MustString("timeframe"))
	assert.Equal(t, "2024-04-17", props.MustString("window_start"))
	assert.Equal(t, "2024-04-28", props.MustString("latest_image"))
	assert.Equal(t, 300.0, props.MustFloat64("vegetation_area_change"))
	assert.Equal(t, 500.0, props.MustFloat64("decline_area"))

	centroid, ok := fc.Features[1].Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, 10.5, centroid.Lon(), 1e-9)
	assert.InDelta(t, 50.5, centroid.Lat(), 1e-9)
}

func TestWriteSummary_RequiresArea(t *testing.T) {
	require.Error(t, WriteSummary(filepath.Join(t.TempDir(), "s.geojson"), Summary{}))
}
