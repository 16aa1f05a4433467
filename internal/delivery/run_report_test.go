package delivery

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forest-guardian/vegetation-report/internal/analysis"
	"github.com/forest-guardian/vegetation-report/internal/aoi"
	"github.com/forest-guardian/vegetation-report/internal/history"
	"github.com/forest-guardian/vegetation-report/internal/properties"
	"github.com/forest-guardian/vegetation-report/internal/render"
	"github.com/forest-guardian/vegetation-report/internal/report"
	"github.com/forest-guardian/vegetation-report/internal/sentinel"
	"github.com/forest-guardian/vegetation-report/internal/state"
	"github.com/forest-guardian/vegetation-report/internal/timeframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

type fakeImagery struct {
	obs   state.Observation
	err   error
	calls int
}

func (f *fakeImagery) Observe(_ context.Context, area *aoi.Area, _ timeframe.Window) (*sentinel.Scene, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	first := &analysis.Grid{Width: 2, Height: 1, Data: []float64{0.1, 0.5}}
	latest := &analysis.Grid{Width: 2, Height: 1, Data: []float64{0.6, 0.1}}
	return &sentinel.Scene{Observation: f.obs, First: first, Latest: latest, Bound: area.Bound(), PixelArea: 100}, nil
}

// fakeRenderer records the state file as it was when rendering started.
type fakeRenderer struct {
	statePath    string
	stateAtStart state.Store
	req          render.Request
	calls        int
}

func (f *fakeRenderer) Render(_ context.Context, req render.Request, path string) error {
	f.calls++
	f.req = req
	store, err := state.Load(f.statePath)
	if err != nil {
		return err
	}
	f.stateAtStart = store

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return jpeg.Encode(file, image.NewRGBA(image.Rect(0, 0, 20, 14)), nil)
}

type failingReports struct{}

func (failingReports) Write(report.Document, string) error { return errors.New("disk full") }

type recordingReports struct{ doc report.Document }

func (r *recordingReports) Write(doc report.Document, _ string) error {
	r.doc = doc
	return nil
}

type recordingNotifier struct{ generated, noData int }

func (n *recordingNotifier) ReportGenerated(context.Context, string, state.Observation, string) error {
	n.generated++
	return nil
}

func (n *recordingNotifier) NoNewData(context.Context, string, state.Observation) error {
	n.noData++
	return errors.New("webhook down")
}

func setup(t *testing.T, obs state.Observation) (Dependencies, *fakeImagery, *fakeRenderer, *recordingNotifier) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("ROOT_PATH", root)
	cfg, err := properties.Load("")
	require.NoError(t, err)

	area, err := aoi.Parse("DQ", []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
  "geometry":{"type":"Polygon","coordinates":[[[10,50],[10.01,50],[10.01,50.01],[10,50.01],[10,50]]]}}]}`))
	require.NoError(t, err)

	imagery := &fakeImagery{obs: obs}
	renderer := &fakeRenderer{statePath: cfg.StatePath}
	notifier := &recordingNotifier{}
	return Dependencies{
		Config:   cfg,
		Area:     area,
		Imagery:  imagery,
		Renderer: renderer,
		Reports:  report.NewPDFWriter(),
		Notifier: notifier,
	}, imagery, renderer, notifier
}

func TestRunReport_FirstRunGeneratesReport(t *testing.T) {
	obs := state.Observation{LatestImageDate: "2024-04-28", FirstImageDate: "2023-05-02", VegetationAreaChange: 1250}
	deps, _, renderer, notifier := setup(t, obs)

	outcome, err := RunReport(context.Background(), deps, "run-1", "one_year", now)
	require.NoError(t, err)
	assert.Equal(t, state.Proceed, outcome.Decision)

	require.Equal(t, 1, renderer.calls)
	assert.Equal(t, obs.Record(), renderer.stateAtStart["one_year"], "state saved before rendering")
	require.NotNil(t, renderer.req.Change)
	assert.Equal(t, []float64{analysis.Growth, analysis.Decline}, renderer.req.Change.Data)

	assert.FileExists(t, outcome.ReportPath)
	assert.FileExists(t, outcome.MapPath)
	assert.FileExists(t, outcome.SummaryPath)

	entries, err := history.Read(deps.Config.HistoryPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-1", entries[0].RunID)
	assert.Equal(t, 1, notifier.generated)
}

func TestRunReport_SameDateSkipsWithoutOutput(t *testing.T) {
	obs := state.Observation{LatestImageDate: "2024-04-28", FirstImageDate: "2023-05-02", VegetationAreaChange: 1250}
	deps, _, renderer, notifier := setup(t, obs)
	stored := state.Store{"one_year": {LatestImage: "2024-04-28", FirstImage: "2023-05-02", VegetationAreaChange: 1000}}
	require.NoError(t, state.Save(deps.Config.StatePath, stored))
	before, err := os.ReadFile(deps.Config.StatePath)
	require.NoError(t, err)

	outcome, err := RunReport(context.Background(), deps, "run-2", "one_year", now)
	require.NoError(t, err, "a failing notification does not fail the run")
	assert.Equal(t, state.SkipNoNewData, outcome.Decision)
	assert.Empty(t, outcome.ReportPath)
	assert.Zero(t, renderer.calls)
	assert.Equal(t, 1, notifier.noData)

	after, err := os.ReadFile(deps.Config.StatePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NoDirExists(t, deps.Config.OutputDir)
}

func TestRunReport_NewerDateReplacesRecord(t *testing.T) {
	obs := state.Observation{LatestImageDate: "2024-04-30", FirstImageDate: "2023-05-02", VegetationAreaChange: -40}
	deps, _, _, _ := setup(t, obs)
	require.NoError(t, state.Save(deps.Config.StatePath, state.Store{
		"one_year":  {LatestImage: "2024-04-28", FirstImage: "2023-05-02", VegetationAreaChange: 1000},
		"two_weeks": {LatestImage: "2024-04-20", FirstImage: "2024-04-10", VegetationAreaChange: 5},
	}))

	outcome, err := RunReport(context.Background(), deps, "run-3", "one_year", now)
	require.NoError(t, err)
	assert.Equal(t, state.Proceed, outcome.Decision)

	store, err := state.Load(deps.Config.StatePath)
	require.NoError(t, err)
	assert.Equal(t, obs.Record(), store["one_year"])
	assert.Equal(t, "2024-04-20", store["two_weeks"].LatestImage)
}

func TestRunReport_CorruptStateStopsBeforeQuery(t *testing.T) {
	deps, imagery, _, _ := setup(t, state.Observation{})
	require.NoError(t, os.MkdirAll(filepath.Dir(deps.Config.StatePath), os.ModePerm))
	require.NoError(t, os.WriteFile(deps.Config.StatePath, []byte(`[1,2]`), 0644))

	_, err := RunReport(context.Background(), deps, "run-4", "one_year", now)
	require.ErrorIs(t, err, state.ErrCorruptState)
	assert.Zero(t, imagery.calls)
}

func TestRunReport_ImageryFailure(t *testing.T) {
	deps, imagery, renderer, _ := setup(t, state.Observation{})
	imagery.err = sentinel.ErrNoImagery

	_, err := RunReport(context.Background(), deps, "run-5", "two_weeks", now)
	require.ErrorIs(t, err, sentinel.ErrNoImagery)
	assert.Zero(t, renderer.calls)
	assert.NoFileExists(t, deps.Config.StatePath)
}

func TestRunReport_ReportFailureKeepsSavedState(t *testing.T) {
	obs := state.Observation{LatestImageDate: "2024-04-28", FirstImageDate: "2023-05-02", VegetationAreaChange: 1250}
	deps, _, _, _ := setup(t, obs)
	deps.Reports = failingReports{}

	_, err := RunReport(context.Background(), deps, "run-6", "one_year", now)
	require.Error(t, err)

	store, err := state.Load(deps.Config.StatePath)
	require.NoError(t, err)
	assert.Equal(t, obs.Record(), store["one_year"])

	entries, err := history.Read(deps.Config.HistoryPath)
	require.NoError(t, err)
	assert.Empty(t, entries, "no history entry for a report that was never written")
}

func TestRunReport_HistoryIncludesCurrentRun(t *testing.T) {
	obs := state.Observation{LatestImageDate: "2024-04-28", FirstImageDate: "2023-05-02", VegetationAreaChange: 1250}
	deps, _, _, _ := setup(t, obs)
	reports := &recordingReports{}
	deps.Reports = reports

	_, err := RunReport(context.Background(), deps, "run-8", "one_year", now)
	require.NoError(t, err)
	require.Len(t, reports.doc.History, 1)
	assert.Equal(t, "run-8", reports.doc.History[0].RunID)

	entries, err := history.Read(deps.Config.HistoryPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-8", entries[0].RunID)
}

func TestRunReport_UnknownTimeframe(t *testing.T) {
	deps, imagery, _, _ := setup(t, state.Observation{})
	_, err := RunReport(context.Background(), deps, "run-7", "forever", now)
	require.ErrorIs(t, err, timeframe.ErrUnknownTimeframe)
	assert.Zero(t, imagery.calls)
}
