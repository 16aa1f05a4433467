package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/vegetation-report/internal/analysis"
	"github.com/forest-guardian/vegetation-report/internal/aoi"
	"github.com/forest-guardian/vegetation-report/internal/state"
	"github.com/forest-guardian/vegetation-report/internal/timeframe"
	"github.com/paulmach/orb/geojson"
)

// Summary is the machine readable companion of a PDF report.
type Summary struct {
	RunID       string
	Window      timeframe.Window
	Area        *aoi.Area
	Observation state.Observation
	Change      analysis.ChangeSummary
	PixelArea   float64
	ReportPath  string
	MapPath     string
	GeneratedAt time.Time
}

// FeatureCollection holds the AOI as a single feature carrying the report figures, and its
// centroid as a labelled point.
func (s Summary) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	f := geojson.NewFeature(s.Area.Geometry)
	f.Properties["run_id"] = s.RunID
	f.Properties["aoi"] = s.Area.Name
	f.Properties["timeframe"] = s.Window.Name
	f.Properties["window_start"] = s.Window.Start.Format(state.DateLayout)
	f.Properties["window_end"] = s.Window.End.Format(state.DateLayout)
	f.Properties["first_image"] = s.Observation.FirstImageDate
	f.Properties["latest_image"] = s.Observation.LatestImageDate
	f.Properties["vegetation_area_change"] = s.Observation.VegetationAreaChange
	f.Properties["growth_area"] = float64(s.Change.Growth) * s.PixelArea
	f.Properties["decline_area"] = float64(s.Change.Decline) * s.PixelArea
	f.Properties["report"] = s.ReportPath
	f.Properties["map"] = s.MapPath
	f.Properties["generated_at"] = s.GeneratedAt.UTC().Format(time.RFC3339)
	fc.Append(f)

	if centroid, err := s.Area.Centroid(); err == nil {
		p := geojson.NewFeature(centroid)
		p.Properties["label"] = fmt.Sprintf("%s %s", s.Area.Name, s.Window.Name)
		fc.Append(p)
	}
	return fc
}

func WriteSummary(path string, s Summary) error {
	if s.Area == nil {
		return fmt.Errorf("summary: area is required")
	}
	data, err := s.FeatureCollection().MarshalJSON()
	if err != nil {
		return fmt.Errorf("error encoding GeoJSON: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error creating GeoJSON file: %w", err)
	}
	return nil
}
