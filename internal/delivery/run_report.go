package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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
	"github.com/forest-guardian/vegetation-report/output"
)

type ImageryQuery interface {
	Observe(ctx context.Context, area *aoi.Area, window timeframe.Window) (*sentinel.Scene, error)
}

type MapRenderer interface {
	Render(ctx context.Context, req render.Request, outputPath string) error
}

type ReportWriter interface {
	Write(doc report.Document, path string) error
}

type Notifier interface {
	ReportGenerated(ctx context.Context, timeframe string, obs state.Observation, reportPath string) error
	NoNewData(ctx context.Context, timeframe string, obs state.Observation) error
}

// Dependencies are the collaborators of a run. Notifier is optional.
type Dependencies struct {
	Config      *properties.Config
	Area        *aoi.Area
	Imagery     ImageryQuery
	Renderer    MapRenderer
	Reports     ReportWriter
	Notifier    Notifier
	Attribution string
}

func (d Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return errors.New("config is required")
	case d.Area == nil:
		return errors.New("area of interest is required")
	case d.Imagery == nil, d.Renderer == nil, d.Reports == nil:
		return errors.New("imagery, renderer and report writer are required")
	}
	return nil
}

// Outcome describes what a run did. Paths are empty when no report was generated.
type Outcome struct {
	RunID       string
	Decision    state.Decision
	Window      timeframe.Window
	Observation state.Observation
	ReportPath  string
	MapPath     string
	SummaryPath string
}

// RunReport observes the timeframe, and generates a report only when the latest acquisition
// is newer than the one of the last report. The updated state is saved before any output is
// produced.
func RunReport(ctx context.Context, deps Dependencies, runID, timeframeName string, now time.Time) (Outcome, error) {
	if err := deps.validate(); err != nil {
		return Outcome{}, err
	}
	cfg := deps.Config

	window, err := timeframe.Resolve(timeframeName, now)
	if err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{RunID: runID, Window: window}
	logger := slog.With(slog.String("run_id", runID), slog.String("timeframe", window.Name))

	store, err := state.Load(cfg.StatePath)
	if err != nil {
		return outcome, err
	}

	logger.Info("Querying imagery", slog.String("window", window.String()))
	scene, err := deps.Imagery.Observe(ctx, deps.Area, window)
	if err != nil {
		return outcome, fmt.Errorf("failed to observe %s: %w", window.Name, err)
	}
	outcome.Observation = scene.Observation

	decision, updated, err := state.EvaluateAndUpdate(store, window.Name, scene.Observation)
	if err != nil {
		return outcome, err
	}
	outcome.Decision = decision
	logger.Info("Evaluated observation",
		slog.String("decision", decision.String()),
		slog.String("latest_image", scene.Observation.LatestImageDate),
		slog.Float64("vegetation_area_change", scene.Observation.VegetationAreaChange))

	if decision == state.SkipNoNewData {
		if deps.Notifier != nil {
			if err := deps.Notifier.NoNewData(ctx, window.Name, scene.Observation); err != nil {
				logger.Warn("Failed to send notification", slog.String("error", err.Error()))
			}
		}
		return outcome, nil
	}

	if err := state.Save(cfg.StatePath, updated); err != nil {
		return outcome, fmt.Errorf("failed to persist state: %w", err)
	}

	change, err := analysis.ChangeGrid(scene.First, scene.Latest)
	if err != nil {
		return outcome, err
	}
	summary := analysis.Summarize(change)

	mapPath := cfg.MapPath(window.Name)
	err = deps.Renderer.Render(ctx, render.Request{
		Area:        deps.Area,
		Change:      change,
		ChangeBound: scene.Bound,
		Attribution: deps.Attribution,
	}, mapPath)
	if err != nil {
		return outcome, fmt.Errorf("failed to render map: %w", err)
	}
	outcome.MapPath = mapPath

	reportPath := cfg.ReportPath(window.Name)
	entry := history.Entry{
		RunID:                runID,
		Timeframe:            window.Name,
		FirstImage:           scene.Observation.FirstImageDate,
		LatestImage:          scene.Observation.LatestImageDate,
		VegetationAreaChange: scene.Observation.VegetationAreaChange,
		ReportPath:           reportPath,
		GeneratedAt:          now,
	}
	entries, err := history.Read(cfg.HistoryPath)
	if err != nil {
		return outcome, err
	}
	entries = append(entries, entry)

	err = deps.Reports.Write(report.Document{
		Window:      window,
		Observation: scene.Observation,
		MapPath:     mapPath,
		History:     history.ForTimeframe(entries, window.Name),
		GeneratedAt: now,
	}, reportPath)
	if err != nil {
		return outcome, fmt.Errorf("failed to write report: %w", err)
	}
	outcome.ReportPath = reportPath

	// only reports that exist are listed in the history
	if err := history.Append(cfg.HistoryPath, entry); err != nil {
		return outcome, err
	}

	summaryPath := cfg.SummaryPath(window.Name)
	err = output.WriteSummary(summaryPath, output.Summary{
		RunID:       runID,
		Window:      window,
		Area:        deps.Area,
		Observation: scene.Observation,
		Change:      summary,
		PixelArea:   scene.PixelArea,
		ReportPath:  reportPath,
		MapPath:     mapPath,
		GeneratedAt: now,
	})
	if err != nil {
		return outcome, err
	}
	outcome.SummaryPath = summaryPath

	logger.Info("Report generated",
		slog.String("report", reportPath),
		slog.Int("growth_cells", summary.Growth),
		slog.Int("decline_cells", summary.Decline))

	if deps.Notifier != nil {
		if err := deps.Notifier.ReportGenerated(ctx, window.Name, scene.Observation, reportPath); err != nil {
			logger.Warn("Failed to send notification", slog.String("error", err.Error()))
		}
	}
	return outcome, nil
}
