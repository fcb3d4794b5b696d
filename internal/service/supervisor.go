package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/updateio/updateio/internal/model"
	"github.com/updateio/updateio/internal/parallel"
)

// Supervisor sweeps the installed apps on a schedule: it checks all of them
// and, with auto update on, updates the ones that need it.
type Supervisor struct {
	manager  *Manager
	cfg      model.Schedule
	job      gocron.JobDefinition
	sweeps   chan struct{}
	progress func(ctx context.Context, id model.AppID) model.ProgressFunc
}

// SweepResult is the outcome for one installed app.
type SweepResult struct {
	App          model.InstalledApp
	UpdateNeeded bool
	Updated      bool
	Err          error
}

func NewSupervisor(manager *Manager, cfg model.Schedule) (*Supervisor, error) {
	if manager == nil {
		return nil, errors.New("manager is nil")
	}
	job, err := jobDefinition(cfg)
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		manager: manager,
		cfg:     cfg,
		job:     job,
		sweeps:  make(chan struct{}, 1),
		progress: func(ctx context.Context, id model.AppID) model.ProgressFunc {
			return LogSink(ctx, slog.Default(), id)
		},
	}, nil
}

// WithProgress replaces the sink each update of a sweep reports to.
func (s *Supervisor) WithProgress(progress func(ctx context.Context, id model.AppID) model.ProgressFunc) *Supervisor {
	s.progress = progress
	return s
}

// Trigger asks a running Do loop for a sweep. It never blocks; a trigger
// arriving while one is pending is merged with it.
func (s *Supervisor) Trigger() {
	select {
	case s.sweeps <- struct{}{}:
	default:
	}
}

// Do runs the scheduler until ctx is canceled. Sweeps never overlap.
func (s *Supervisor) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a supervisor")

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	defer func() {
		err := scheduler.Shutdown()
		if err != nil {
			slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
		}
	}()
	_, err = scheduler.NewJob(s.job, gocron.NewTask(s.Trigger))
	if err != nil {
		return fmt.Errorf("initializing gocron job: %w", err)
	}
	scheduler.Start()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.sweeps:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one round synchronously. Checks run concurrently, updates one
// at a time since steamcmd does not support parallel installs. The returned
// error covers listing and cancellation; per app errors are in the results,
// which are ordered by app id.
func (s *Supervisor) Sweep(ctx context.Context) ([]SweepResult, error) {
	apps, err := s.manager.InstalledApps(ctx)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "sweep started", "apps", len(apps), "auto_update", s.cfg.AutoUpdate)

	check := func(ctx context.Context, app model.InstalledApp) (SweepResult, error) {
		needed, err := s.manager.CheckForUpdate(ctx, app.AppID)
		return SweepResult{App: app, UpdateNeeded: needed, Err: err}, nil
	}

	results := make([]SweepResult, 0, len(apps))
	var sweepErr error
	for r, err := range parallel.NewMap(s.cfg.Parallel, check).Iter(ctx, slices.Values(apps)) {
		if err != nil {
			sweepErr = err
			continue
		}
		results = append(results, r)
	}
	slices.SortFunc(results, func(a, b SweepResult) int {
		return cmp.Compare(a.App.AppID, b.App.AppID)
	})
	if sweepErr != nil {
		return results, sweepErr
	}

	for i := range results {
		r := &results[i]
		switch {
		case r.Err != nil:
			slog.WarnContext(ctx, "update check failed", "app_id", r.App.AppID, "error", r.Err)
			continue
		case !r.UpdateNeeded:
			slog.DebugContext(ctx, "app is up to date", "app_id", r.App.AppID, "name", r.App.Name)
			continue
		case !s.cfg.AutoUpdate:
			slog.InfoContext(ctx, "update available", "app_id", r.App.AppID, "name", r.App.Name)
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r.Err = s.manager.Update(ctx, r.App.AppID, s.progress(ctx, r.App.AppID))
		r.Updated = r.Err == nil
	}
	slog.InfoContext(ctx, "sweep finished", "apps", len(results))
	return results, nil
}

func jobDefinition(cfg model.Schedule) (gocron.JobDefinition, error) {
	switch {
	case cfg.Cron != "" && cfg.Every != "":
		return nil, errors.New("schedule.cron and schedule.every are mutually exclusive")
	case cfg.Cron != "":
		if _, err := model.ParseCron(cfg.Cron); err != nil {
			return nil, fmt.Errorf("parsing schedule.cron: %w", err)
		}
		return gocron.CronJob(cfg.Cron, false), nil
	case cfg.Every != "":
		d, err := model.ParseISODuration(cfg.Every)
		if err != nil {
			return nil, fmt.Errorf("parsing schedule.every: %w", err)
		}
		if d <= 0 {
			return nil, errors.New("schedule.every must be positive")
		}
		return gocron.DurationJob(d), nil
	default:
		return nil, errors.New("both schedule.cron and schedule.every are empty")
	}
}
