package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/updateio/updateio/internal/model"
	"github.com/updateio/updateio/internal/service"
	"github.com/updateio/updateio/internal/steamcmd"
)

const installed = `AppID 740 : "Counter-Strike Global Offensive - Dedicated Server" : /srv/csgo
AppID 90 : "Half-Life Dedicated Server" : /srv/hlds
AppID 4020 : "Garry's Mod Dedicated Server" : /srv/gmod
`

func sweepRunner() *fakeRunner {
	return &fakeRunner{
		run: func(_ context.Context, op steamcmd.Operation, id model.AppID) (steamcmd.Result, error) {
			if op == steamcmd.OpListInstalled {
				return steamcmd.Result{Stdout: installed}, nil
			}
			switch id {
			case 740:
				return steamcmd.Result{Stdout: "AppID 740: Update needed\n"}, nil
			case 90:
				return steamcmd.Result{Stdout: "App '90' Up to date.\n"}, nil
			default:
				return steamcmd.Result{Stdout: "Loading Steam API...OK\n"}, nil
			}
		},
		start: func(context.Context, model.AppID) (*steamcmd.Process, error) {
			return scripted([]string{"Success! App '740' fully installed."}, nil, nil), nil
		},
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario   string
		autoUpdate bool
		updates    int
	}{
		{"check only", false, 0},
		{"auto update", true, 1},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			runner := sweepRunner()
			m, err := service.NewManager(runner, testConfig())
			require.NoError(t, err)

			cfg := model.DefaultConfig().Schedule
			cfg.AutoUpdate = tt.autoUpdate
			var rec recorder
			s, err := service.NewSupervisor(m, cfg)
			require.NoError(t, err)
			s.WithProgress(func(context.Context, model.AppID) model.ProgressFunc { return rec.Progress })

			results, err := s.Sweep(t.Context())
			require.NoError(t, err)
			require.Len(t, results, 3)

			require.Equal(t, model.AppID(90), results[0].App.AppID)
			require.False(t, results[0].UpdateNeeded)
			require.NoError(t, results[0].Err)

			require.Equal(t, model.AppID(740), results[1].App.AppID)
			require.True(t, results[1].UpdateNeeded)
			require.Equal(t, tt.autoUpdate, results[1].Updated)
			require.NoError(t, results[1].Err)

			require.Equal(t, model.AppID(4020), results[2].App.AppID)
			require.ErrorIs(t, results[2].Err, model.ErrUndetermined)

			require.Equal(t, tt.updates, runner.Calls(steamcmd.OpUpdate))
			require.Equal(t, 3, runner.Calls(steamcmd.OpCheckStatus))
			if tt.autoUpdate {
				require.Equal(t, model.StateComplete, rec.Last().State)
			} else {
				require.Empty(t, rec.Events())
			}
		})
	}
}

func TestSweepCanceled(t *testing.T) {
	t.Parallel()

	m, err := service.NewManager(sweepRunner(), testConfig())
	require.NoError(t, err)
	s, err := service.NewSupervisor(m, model.DefaultConfig().Schedule)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = s.Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewSupervisor(t *testing.T) {
	t.Parallel()

	m, err := service.NewManager(sweepRunner(), testConfig())
	require.NoError(t, err)

	var testCases = []struct {
		scenario string
		given    model.Schedule
		ok       bool
	}{
		{"every", model.Schedule{Every: "PT30M", Parallel: 1}, true},
		{"cron", model.Schedule{Cron: "*/5 * * * *", Parallel: 1}, true},
		{"macro", model.Schedule{Cron: "@hourly", Parallel: 1}, true},
		{"both", model.Schedule{Cron: "@hourly", Every: "PT1H"}, false},
		{"none", model.Schedule{}, false},
		{"bad cron", model.Schedule{Cron: "* * *"}, false},
		{"bad every", model.Schedule{Every: "30m"}, false},
		{"zero every", model.Schedule{Every: "PT0S"}, false},
	}
	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := service.NewSupervisor(m, tt.given)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}

	_, err = service.NewSupervisor(nil, model.DefaultConfig().Schedule)
	require.Error(t, err)
}

func TestSupervisorDo(t *testing.T) {
	t.Parallel()

	runner := sweepRunner()
	m, err := service.NewManager(runner, testConfig())
	require.NoError(t, err)

	cfg := model.Schedule{Every: "PT1H", Parallel: 2, AutoUpdate: true}
	swept := make(chan struct{})
	var once sync.Once
	s, err := service.NewSupervisor(m, cfg)
	require.NoError(t, err)
	s.WithProgress(func(context.Context, model.AppID) model.ProgressFunc {
		return func(st model.UpdateStatus) {
			if st.State == model.StateComplete {
				once.Do(func() { close(swept) })
			}
		}
	})

	ctx, cancel := context.WithCancel(t.Context())
	t.Cleanup(cancel)

	// triggers before Do are kept, and merged while one is pending
	s.Trigger()
	s.Trigger()

	done := make(chan error, 1)
	go func() { done <- s.Do(ctx) }()
	select {
	case <-swept:
	case <-time.After(10 * time.Second):
		t.Fatal("no sweep within 10s")
	}

	cancel()
	require.NoError(t, <-done)
	require.GreaterOrEqual(t, runner.Calls(steamcmd.OpUpdate), 1)
}
