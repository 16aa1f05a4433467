package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/forest-guardian/vegetation-report/internal/aoi"
	"github.com/forest-guardian/vegetation-report/internal/cache"
	"github.com/forest-guardian/vegetation-report/internal/delivery"
	"github.com/forest-guardian/vegetation-report/internal/notification"
	"github.com/forest-guardian/vegetation-report/internal/properties"
	"github.com/forest-guardian/vegetation-report/internal/raster"
	"github.com/forest-guardian/vegetation-report/internal/render"
	"github.com/forest-guardian/vegetation-report/internal/report"
	"github.com/forest-guardian/vegetation-report/internal/schedule"
	"github.com/forest-guardian/vegetation-report/internal/sentinel"
	"github.com/forest-guardian/vegetation-report/internal/state"
	"github.com/forest-guardian/vegetation-report/internal/timeframe"
	"github.com/forest-guardian/vegetation-report/internal/ui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const tileCacheMaxAge = 30 * 24 * time.Hour

// exitError ends the process with a code without printing anything.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

type app struct {
	configPath string
	verbose    bool
	cfg        *properties.Config
	console    *ui.Console
	// deps builds the collaborators of a run once the configuration is loaded.
	deps func(ctx context.Context) (delivery.Dependencies, error)
}

func main() {
	console := ui.NewConsole(os.Stdout)
	if err := newRootCmd(console).Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		console.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd(console *ui.Console) *cobra.Command {
	a := &app{console: console}
	a.deps = a.dependencies
	return a.command()
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "vegreport",
		Short:         "Vegetation change reports from Sentinel-2 imagery",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			if err := properties.LoadEnv(); err != nil {
				return err
			}
			cfg, err := properties.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newDaemonCmd(a))
	root.AddCommand(newStateCmd(a))
	root.AddCommand(newTimeframesCmd(a))
	return root
}

func (a *app) notifier() *notification.Discord {
	return notification.NewDiscord(a.cfg.Discord.ErrorURL, a.cfg.Discord.SuccessURL, nil)
}

func (a *app) dependencies(ctx context.Context) (delivery.Dependencies, error) {
	cfg := a.cfg
	area, err := aoi.Load(cfg.AOIPath)
	if err != nil {
		return delivery.Dependencies{}, err
	}
	area.Name = cfg.AOIName

	imagery, err := sentinel.NewClient(ctx, sentinel.Config{
		BaseURL:       cfg.Copernicus.BaseURL,
		TokenURL:      cfg.Copernicus.TokenURL,
		ClientIDs:     cfg.Copernicus.ClientIDs(),
		ClientSecrets: cfg.Copernicus.ClientSecrets(),
		Collection:    cfg.Copernicus.Collection,
		MaxCloudCover: cfg.Copernicus.MaxCloudCover,
		ImageDir:      cfg.ImageDir,
	}, raster.NewGodalDecoder())
	if err != nil {
		return delivery.Dependencies{}, err
	}

	basemap, err := render.LookupBasemap(cfg.Basemap)
	if err != nil {
		return delivery.Dependencies{}, err
	}
	tiles := render.NewHTTPTileSource(basemap,
		&http.Client{Timeout: 30 * time.Second},
		cache.NewFileCache[[]byte](cfg.CacheDir, tileCacheMaxAge),
		8, os.Stderr)

	return delivery.Dependencies{
		Config:      cfg,
		Area:        area,
		Imagery:     imagery,
		Renderer:    render.NewRenderer(render.DefaultOptions(), tiles),
		Reports:     report.NewPDFWriter(),
		Notifier:    a.notifier(),
		Attribution: basemap.Attribution,
	}, nil
}

// runOnce generates one report. Panics are turned into errors so the daemon survives them
// and the error webhook still hears about them.
func (a *app) runOnce(ctx context.Context, runID, tf string) (outcome delivery.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n\n%s", r, debug.Stack())
		}
		if err != nil {
			msg := fmt.Sprintf("Vegetation report %s (%s)\n\n%s", tf, runID, err.Error())
			if nerr := a.notifier().Error(ctx, msg); nerr != nil {
				slog.Warn("Failed to send notification", slog.String("error", nerr.Error()))
			}
		}
	}()

	deps, err := a.deps(ctx)
	if err != nil {
		return delivery.Outcome{}, err
	}
	return delivery.RunReport(ctx, deps, runID, tf, time.Now())
}

func newRunCmd(a *app) *cobra.Command {
	var tf string
	var noDataExitCode int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate the report of a timeframe if new imagery is available",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.console.Banner()
			outcome, err := a.runOnce(ctx, uuid.NewString(), tf)
			if err != nil {
				return err
			}
			if outcome.Decision == state.SkipNoNewData {
				a.console.Warning(fmt.Sprintf("no new data for %s since %s, no report generated",
					outcome.Window.Name, outcome.Observation.LatestImageDate))
				if noDataExitCode != 0 {
					return &exitError{code: noDataExitCode}
				}
				return nil
			}
			a.console.Success(fmt.Sprintf("Report generated!\n Report located at: %s\n Map located at: %s\n Summary located at: %s",
				outcome.ReportPath, outcome.MapPath, outcome.SummaryPath))
			return nil
		},
	}
	cmd.Flags().StringVarP(&tf, "timeframe", "t", "one_year", fmt.Sprintf("timeframe to report on %v", timeframe.Names()))
	cmd.Flags().IntVar(&noDataExitCode, "no-data-exit-code", 0, "exit code when there is no new imagery")
	return cmd
}

func newDaemonCmd(a *app) *cobra.Command {
	var crontab string
	var timeframes []string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Generate reports on a cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if crontab == "" {
				crontab = a.cfg.Schedule.Cron
			}
			if len(timeframes) == 0 {
				timeframes = a.cfg.Schedule.Timeframes
			}
			for _, tf := range timeframes {
				if _, err := timeframe.Resolve(tf, time.Now()); err != nil {
					return err
				}
			}

			s, err := schedule.NewScheduler(ctx, func(ctx context.Context, runID, tf string) error {
				_, err := a.runOnce(ctx, runID, tf)
				return err
			})
			if err != nil {
				return err
			}
			job, err := s.Schedule(crontab, timeframes)
			if err != nil {
				return err
			}

			a.console.Banner()
			if next, err := job.NextRun(); err == nil {
				a.console.Info(fmt.Sprintf("Reporting %v on %q, next run at %s", timeframes, crontab, next.Format(time.RFC3339)))
			}
			s.Start()
			<-ctx.Done()
			return s.Stop()
		},
	}
	cmd.Flags().StringVar(&crontab, "cron", "", "cron expression (UTC), defaults to the configured schedule")
	cmd.Flags().StringSliceVarP(&timeframes, "timeframe", "t", nil, "timeframes to report on, defaults to the configured ones")
	return cmd
}

func newStateCmd(a *app) *cobra.Command {
	stateCmd := &cobra.Command{Use: "state", Short: "Inspect the report state"}
	stateCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the last reported images per timeframe",
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := state.Load(a.cfg.StatePath)
			if err != nil {
				return err
			}
			a.console.State(store)
			return nil
		},
	})
	return stateCmd
}

func newTimeframesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "timeframes",
		Short: "List the timeframes and the windows they resolve to today",
		RunE: func(_ *cobra.Command, _ []string) error {
			now := time.Now()
			windows := make([]timeframe.Window, 0, len(timeframe.Names()))
			for _, name := range timeframe.Names() {
				w, err := timeframe.Resolve(name, now)
				if err != nil {
					return err
				}
				windows = append(windows, w)
			}
			a.console.Timeframes(windows)
			return nil
		},
	}
}
