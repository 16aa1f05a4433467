package aoi

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrNoGeometry = errors.New("no usable geometry in AOI file")

// Area is the area of interest every report is computed for.
type Area struct {
	Name     string
	Geometry orb.Geometry
}

// Load reads a GeoJSON FeatureCollection and keeps the geometry of its first feature.
func Load(path string) (*Area, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AOI file: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(name, data)
}

// Parse builds an Area from GeoJSON bytes. Only Polygon and MultiPolygon geometries are accepted.
func Parse(name string, data []byte) (*Area, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AOI GeoJSON: %w", err)
	}
	if len(fc.Features) == 0 || fc.Features[0].Geometry == nil {
		return nil, ErrNoGeometry
	}

	switch g := fc.Features[0].Geometry.(type) {
	case orb.Polygon:
		if len(g) == 0 || len(g[0]) < 4 {
			return nil, fmt.Errorf("%w: degenerate polygon", ErrNoGeometry)
		}
		return &Area{Name: name, Geometry: g}, nil
	case orb.MultiPolygon:
		if len(g) == 0 {
			return nil, fmt.Errorf("%w: empty multipolygon", ErrNoGeometry)
		}
		return &Area{Name: name, Geometry: g}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported geometry type %s", ErrNoGeometry, g.GeoJSONType())
	}
}

func (a *Area) Bound() orb.Bound {
	return a.Geometry.Bound()
}

// Centroid returns the planar centroid in lon/lat order.
func (a *Area) Centroid() (orb.Point, error) {
	centroid, area := planar.CentroidArea(a.Geometry)
	if area <= 0 {
		return orb.Point{}, errors.New("error getting centroid")
	}
	return centroid, nil
}

// Outlines returns the exterior ring of every polygon, used to draw the AOI border.
func (a *Area) Outlines() []orb.Ring {
	switch g := a.Geometry.(type) {
	case orb.Polygon:
		return []orb.Ring{g[0]}
	case orb.MultiPolygon:
		rings := make([]orb.Ring, 0, len(g))
		for _, p := range g {
			if len(p) > 0 {
				rings = append(rings, p[0])
			}
		}
		return rings
	}
	return nil
}

// GeoJSON returns the bare geometry object, as expected by the Sentinel Hub process API.
func (a *Area) GeoJSON() ([]byte, error) {
	return geojson.NewGeometry(a.Geometry).MarshalJSON()
}

// Key identifies the geometry, so cached rasters of another AOI are never reused.
func (a *Area) Key() string {
	data, err := a.GeoJSON()
	if err != nil {
		data = []byte(a.Name)
	}
	h := sha1.New()
	h.Write(data)
	return a.Name + "_" + hex.EncodeToString(h.Sum(nil))[:12]
}
