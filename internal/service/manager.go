package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/updateio/updateio/internal/cache"
	"github.com/updateio/updateio/internal/log"
	"github.com/updateio/updateio/internal/model"
	"github.com/updateio/updateio/internal/steamcmd"
)

// installedKey is the single entry of the installed apps cache.
const installedKey = "installed"

// Manager checks and updates apps through a steamcmd Runner. It owns the
// verdict cache and the installed apps cache and is safe for concurrent use.
type Manager struct {
	runner    steamcmd.Runner
	checks    *cache.Cache[model.AppID, bool]
	installed *cache.Cache[string, []model.InstalledApp]

	mx       sync.Mutex
	updating map[model.AppID]struct{}
}

func NewManager(runner steamcmd.Runner, cfg model.Config) (*Manager, error) {
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	checks, err := cache.New[model.AppID, bool](cfg.Cache.Size, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("initializing check cache: %w", err)
	}
	installed, err := cache.New[string, []model.InstalledApp](1, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("initializing installed apps cache: %w", err)
	}
	return &Manager{
		runner:    runner,
		checks:    checks,
		installed: installed,
		updating:  make(map[model.AppID]struct{}),
	}, nil
}

// CheckForUpdate reports whether id has a pending update. A fresh cached
// verdict is returned without running steamcmd. Errors are never cached.
func (m *Manager) CheckForUpdate(ctx context.Context, id model.AppID) (bool, error) {
	if needed, ok := m.checks.Get(id); ok {
		slog.DebugContext(ctx, "update check served from cache", "app_id", id, "update_needed", needed)
		return needed, nil
	}

	res, runErr := m.runner.Run(ctx, steamcmd.OpCheckStatus, id)
	if runErr != nil && !determinable(runErr) {
		return false, fmt.Errorf("checking app %s: %w", id, runErr)
	}

	needed, err := steamcmd.CheckUpdateNeeded(res.Stdout)
	if err != nil {
		var perr *model.ProcessError
		if errors.As(runErr, &perr) {
			err = &model.ProcessError{ExitCode: perr.ExitCode, Message: perr.Message, Err: model.ErrUndetermined}
		}
		return false, fmt.Errorf("checking app %s: %w", id, err)
	}
	if runErr != nil {
		slog.WarnContext(ctx, "steamcmd failed, using its output anyway", "app_id", id, "error", runErr)
	}

	m.checks.Set(id, needed)
	slog.DebugContext(ctx, "update check", "app_id", id, "update_needed", needed, "cached_verdicts", m.checks.Len())
	return needed, nil
}

// determinable reports whether the output of a failed run may still be
// scanned for a verdict. Spawn failures and cancellation produce none.
func determinable(err error) bool {
	var serr *model.SpawnError
	if errors.As(err, &serr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Invalidate drops the cached verdict for id.
func (m *Manager) Invalidate(id model.AppID) {
	m.checks.Invalidate(id)
}

// InstalledApps lists the apps steamcmd knows about. The list is cached with
// the verdict TTL.
func (m *Manager) InstalledApps(ctx context.Context) ([]model.InstalledApp, error) {
	if apps, ok := m.installed.Get(installedKey); ok {
		return slices.Clone(apps), nil
	}

	res, err := m.runner.Run(ctx, steamcmd.OpListInstalled, 0)
	if err != nil {
		return nil, fmt.Errorf("listing installed apps: %w", err)
	}
	apps := steamcmd.ParseInstalledApps(res.Stdout)
	m.installed.Set(installedKey, apps)
	slog.DebugContext(ctx, "installed apps listed", "count", len(apps))
	return slices.Clone(apps), nil
}

// RefreshInstalledApps drops the cached list and lists again.
func (m *Manager) RefreshInstalledApps(ctx context.Context) ([]model.InstalledApp, error) {
	m.installed.Clear()
	return m.InstalledApps(ctx)
}

// Update runs +app_update for id and reports every event to progress, which
// is called from one goroutine only. The last event is Complete on success
// and Error on failure. Only one update per id may run at a time, a second
// call returns model.ErrUpdateInProgress.
func (m *Manager) Update(ctx context.Context, id model.AppID, progress model.ProgressFunc) error {
	if progress == nil {
		progress = func(model.UpdateStatus) {}
	}
	if !m.begin(id) {
		return fmt.Errorf("updating app %s: %w", id, model.ErrUpdateInProgress)
	}
	defer m.end(id)

	ctx = log.ContextAttrs(ctx,
		slog.String("run_id", uuid.NewString()),
		slog.String("app_id", id.String()),
	)
	slog.InfoContext(ctx, "update started")

	progress(model.UpdateStatus{State: model.StateStarting, Status: "Starting update"})

	proc, err := m.runner.Start(ctx, steamcmd.OpUpdate, id)
	if err != nil {
		progress(model.UpdateStatus{State: model.StateError, Status: "Update failed", Error: err.Error()})
		slog.ErrorContext(ctx, "update failed", "error", err)
		return fmt.Errorf("updating app %s: %w", id, err)
	}

	out := consume(ctx, proc, progress)
	waitErr := proc.Wait()

	if err := out.err(waitErr); err != nil {
		if !out.lastWasError {
			progress(model.UpdateStatus{
				Progress: out.last.Progress,
				State:    model.StateError,
				Status:   "Update failed",
				Error:    err.Error(),
			})
		}
		slog.ErrorContext(ctx, "update failed", "error", err)
		return fmt.Errorf("updating app %s: %w", id, err)
	}

	m.checks.Invalidate(id)
	m.installed.Clear()
	progress(model.UpdateStatus{Progress: 100, State: model.StateComplete, Status: "Update completed"})
	slog.InfoContext(ctx, "update finished")
	return nil
}

func (m *Manager) begin(id model.AppID) bool {
	m.mx.Lock()
	defer m.mx.Unlock()
	if _, ok := m.updating[id]; ok {
		return false
	}
	m.updating[id] = struct{}{}
	return true
}

func (m *Manager) end(id model.AppID) {
	m.mx.Lock()
	defer m.mx.Unlock()
	delete(m.updating, id)
}
