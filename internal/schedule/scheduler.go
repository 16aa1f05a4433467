package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// RunFunc generates the report of one timeframe.
type RunFunc func(ctx context.Context, runID, timeframe string) error

// Scheduler runs every configured timeframe on a cron expression. Timeframes of one tick run
// one after the other since they share the state file, and a tick that is still running when
// the next one is due delays it instead of overlapping.
type Scheduler struct {
	scheduler gocron.Scheduler
	run       RunFunc
	ctx       context.Context
}

func NewScheduler(ctx context.Context, run RunFunc) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("run function is required")
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, run: run, ctx: ctx}, nil
}

// Schedule registers the report job and returns it for inspection.
func (s *Scheduler) Schedule(crontab string, timeframes []string) (gocron.Job, error) {
	if len(timeframes) == 0 {
		return nil, errors.New("at least one timeframe is required")
	}
	job, err := s.scheduler.NewJob(
		gocron.CronJob(crontab, false),
		gocron.NewTask(s.execute, timeframes),
		gocron.WithName("vegetation-report"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report job: %w", err)
	}
	return job, nil
}

func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) execute(timeframes []string) {
	for _, tf := range timeframes {
		if s.ctx.Err() != nil {
			return
		}
		runID := uuid.NewString()
		slog.Info("Executing scheduled report", slog.String("run_id", runID), slog.String("timeframe", tf))
		if err := s.run(s.ctx, runID, tf); err != nil {
			slog.Error("Scheduled report failed",
				slog.String("run_id", runID),
				slog.String("timeframe", tf),
				slog.String("error", err.Error()))
		}
	}
}
