package aoi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const square = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "DQ"},
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [[[[10.0, 50.0], [10.2, 50.0], [10.2, 50.2], [10.0, 50.2], [10.0, 50.0]]]]
      }
    },
    {
      "type": "Feature",
      "properties": {},
      "geometry": {"type": "Point", "coordinates": [0, 0]}
    }
  ]
}`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DQ.geojson")
	require.NoError(t, os.WriteFile(path, []byte(square), 0644))

	area, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DQ", area.Name)

	b := area.Bound()
	assert.InDelta(t, 10.0, b.Min.Lon(), 1e-9)
	assert.InDelta(t, 50.0, b.Min.Lat(), 1e-9)
	assert.InDelta(t, 10.2, b.Max.Lon(), 1e-9)
	assert.InDelta(t, 50.2, b.Max.Lat(), 1e-9)

	c, err := area.Centroid()
	require.NoError(t, err)
	assert.InDelta(t, 10.1, c.Lon(), 1e-9)
	assert.InDelta(t, 50.1, c.Lat(), 1e-9)

	outlines := area.Outlines()
	require.Len(t, outlines, 1)
	assert.Len(t, outlines[0], 5)
}

func TestParse_Polygon(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
	  "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}]}`

	area, err := Parse("plot", []byte(doc))
	require.NoError(t, err)
	assert.IsType(t, orb.Polygon{}, area.Geometry)

	raw, err := area.GeoJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"Polygon"`)
}

func TestParse_Rejects(t *testing.T) {
	docs := map[string]string{
		"no features": `{"type":"FeatureCollection","features":[]}`,
		"point":       `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[0,0]}}]}`,
		"not geojson": `[1,2,3]`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("x", []byte(doc))
			require.Error(t, err)
		})
	}
}

func TestKey_DependsOnGeometry(t *testing.T) {
	a, err := Parse("same", []byte(square))
	require.NoError(t, err)
	b, err := Parse("same", []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
	  "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}]}`))
	require.NoError(t, err)

	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), a.Key())
}
