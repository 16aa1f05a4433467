package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// Basemap is an XYZ tile layer drawn under the change overlay.
type Basemap struct {
	Key         string
	Name        string
	URL         string
	Attribution string
}

var Basemaps = map[string]Basemap{
	"google_maps": {
		Key:         "google_maps",
		Name:        "Google Maps",
		URL:         "https://mt1.google.com/vt/lyrs=m&x={x}&y={y}&z={z}",
		Attribution: "Google",
	},
	"google_satellite": {
		Key:         "google_satellite",
		Name:        "Google Satellite",
		URL:         "https://mt1.google.com/vt/lyrs=s&x={x}&y={y}&z={z}",
		Attribution: "Google",
	},
	"google_terrain": {
		Key:         "google_terrain",
		Name:        "Google Terrain",
		URL:         "https://mt1.google.com/vt/lyrs=p&x={x}&y={y}&z={z}",
		Attribution: "Google",
	},
	"google_satellite_hybrid": {
		Key:         "google_satellite_hybrid",
		Name:        "Google Satellite Hybrid",
		URL:         "https://mt1.google.com/vt/lyrs=y&x={x}&y={y}&z={z}",
		Attribution: "Google",
	},
	"esri_satellite": {
		Key:         "esri_satellite",
		Name:        "Esri Satellite",
		URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Esri",
	},
}

const DefaultBasemap = "google_satellite"

// LookupBasemap returns a named basemap. A value that looks like a URL template is
// accepted as a custom layer.
func LookupBasemap(name string) (Basemap, error) {
	if b, ok := Basemaps[name]; ok {
		return b, nil
	}
	if strings.Contains(name, "{x}") && strings.Contains(name, "{y}") && strings.Contains(name, "{z}") {
		return Basemap{Key: "custom", Name: "Custom", URL: name}, nil
	}
	names := make([]string, 0, len(Basemaps))
	for k := range Basemaps {
		names = append(names, k)
	}
	sort.Strings(names)
	return Basemap{}, fmt.Errorf("unknown basemap %q (known: %s)", name, strings.Join(names, ", "))
}

func (b Basemap) TileURL(t maptile.Tile) string {
	r := strings.NewReplacer(
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
		"{z}", strconv.FormatUint(uint64(t.Z), 10),
	)
	return r.Replace(b.URL)
}
