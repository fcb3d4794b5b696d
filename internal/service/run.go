package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/updateio/updateio/internal/model"
	"github.com/updateio/updateio/internal/steamcmd"
)

// NewManagerFromConfig resolves steamcmd and builds a Manager around it.
func NewManagerFromConfig(cfg model.Config) (*Manager, error) {
	launcher, err := steamcmd.NewLauncher(cfg.SteamCmd)
	if err != nil {
		return nil, err
	}
	return NewManager(launcher, cfg)
}

// Run implements the CLI run command. With once it sweeps a single time and
// reports the per app failures, otherwise it sweeps at startup and then on
// schedule until ctx is canceled.
func Run(ctx context.Context, manager *Manager, cfg model.Schedule, once bool) error {
	supervisor, err := NewSupervisor(manager, cfg)
	if err != nil {
		return err
	}

	if !once {
		supervisor.Trigger()
		return supervisor.Do(ctx)
	}

	results, err := supervisor.Sweep(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("app %s: %w", r.App.AppID, r.Err))
		}
	}
	return errors.Join(errs...)
}
