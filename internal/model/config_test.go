package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/updateio/updateio/internal/model"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := model.DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1000, cfg.Cache.Size)
	require.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	require.False(t, cfg.SteamCmd.HasCredentials())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    func(*model.Config)
		then     string
	}{
		{"zero cache", func(c *model.Config) { c.Cache.Size = 0 }, "cache.size must be positive, got 0"},
		{"negative ttl", func(c *model.Config) { c.Cache.TTL = -time.Second }, "cache.ttl must not be negative"},
		{"username only", func(c *model.Config) { c.SteamCmd.Username = "gaben" }, "steamcmd.username and steamcmd.password must be set together"},
		{"cron and every", func(c *model.Config) { c.Schedule.Cron = "@hourly" }, "schedule.cron and schedule.every are mutually exclusive"},
		{"bad every", func(c *model.Config) { c.Schedule.Every = "30m" }, "parsing schedule.every: invalid ISO8601 duration"},
		{"no parallel", func(c *model.Config) { c.Schedule.Parallel = 0 }, "schedule.parallel must be at least 1, got 0"},
		{"log level", func(c *model.Config) { c.Log.Level = "trace" }, `log.level "trace" is not one of debug, info, warn, error`},
		{"log format", func(c *model.Config) { c.Log.Format = "xml" }, `log.format "xml" is not one of json, text`},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			cfg := model.DefaultConfig()
			tt.given(&cfg)
			require.EqualError(t, cfg.Validate(), tt.then)
		})
	}

	t.Run("credentials", func(t *testing.T) {
		cfg := model.DefaultConfig()
		cfg.SteamCmd.Username = "gaben"
		cfg.SteamCmd.Password = "hunter2"
		require.NoError(t, cfg.Validate())
		require.True(t, cfg.SteamCmd.HasCredentials())
	})

	t.Run("joined", func(t *testing.T) {
		cfg := model.DefaultConfig()
		cfg.Cache.Size = -1
		cfg.Log.Format = "xml"
		err := cfg.Validate()
		require.ErrorContains(t, err, "cache.size")
		require.ErrorContains(t, err, "log.format")
	})
}

func TestParseISODuration(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		given string
		then  time.Duration
		err   bool
	}{
		{"PT30M", 30 * time.Minute, false},
		{"P1D", 24 * time.Hour, false},
		{"P1DT2H3M4S", 26*time.Hour + 3*time.Minute + 4*time.Second, false},
		{"PT45S", 45 * time.Second, false},
		{"P", 0, true},
		{"PT", 0, true},
		{"P1DT", 0, true},
		{"P1M", 0, true},
		{"30m", 0, true},
		{"", 0, true},
	}

	for _, tt := range testCases {
		t.Run(tt.given, func(t *testing.T) {
			d, err := model.ParseISODuration(tt.given)
			if tt.err {
				require.ErrorIs(t, err, model.ErrISOFormat)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.then, d)
		})
	}
}

func TestParseCron(t *testing.T) {
	t.Parallel()

	d, err := model.ParseCron("@hourly")
	require.NoError(t, err)
	require.Equal(t, time.Hour, d)

	d, err = model.ParseCron("*/15 * * * *")
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, d)

	_, err = model.ParseCron("")
	require.EqualError(t, err, "empty cron expression")

	_, err = model.ParseCron("* * * * * *")
	require.Error(t, err)
}
