package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	LogFormatJSON = "json"
	LogFormatText = "text"

	DefaultCacheSize = 1000
	DefaultCacheTTL  = 30 * time.Minute
)

// Config is the settings view the update core consumes.
type Config struct {
	SteamCmd SteamCmd `mapstructure:"steamcmd" yaml:"steamcmd"`
	Cache    Cache    `mapstructure:"cache" yaml:"cache"`
	Schedule Schedule `mapstructure:"schedule" yaml:"schedule"`
	Log      Log      `mapstructure:"log" yaml:"log"`
}

// SteamCmd configures the external update tool. Empty Path means the bundled
// binary next to the executable. Timeout 0 disables the per-run deadline.
type SteamCmd struct {
	Path     string        `mapstructure:"path" yaml:"path,omitempty"`
	Username string        `mapstructure:"username" yaml:"username,omitempty"`
	Password string        `mapstructure:"password" yaml:"password,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type Cache struct {
	Size int           `mapstructure:"size" yaml:"size"`
	TTL  time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Schedule drives the background sweep of `updateio run`. Cron and Every are
// mutually exclusive; Every is an ISO 8601 duration such as PT30M.
type Schedule struct {
	AutoUpdate bool   `mapstructure:"auto_update" yaml:"auto_update"`
	Cron       string `mapstructure:"cron" yaml:"cron,omitempty"`
	Every      string `mapstructure:"every" yaml:"every,omitempty"`
	Parallel   int    `mapstructure:"parallel" yaml:"parallel"`
}

type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Path   string `mapstructure:"path" yaml:"path,omitempty"` // empty => stderr
}

func DefaultConfig() Config {
	return Config{
		Cache: Cache{
			Size: DefaultCacheSize,
			TTL:  DefaultCacheTTL,
		},
		Schedule: Schedule{
			Every:    "PT30M",
			Parallel: 4,
		},
		Log: Log{
			Level:  "info",
			Format: LogFormatJSON,
		},
	}
}

// HasCredentials reports whether a named login should be used instead of
// the anonymous one.
func (s SteamCmd) HasCredentials() bool {
	return s.Username != "" && s.Password != ""
}

// Validate returns all configuration problems joined together.
func (c Config) Validate() error {
	var errs []error
	if c.SteamCmd.Timeout < 0 {
		errs = append(errs, errors.New("steamcmd.timeout must not be negative"))
	}
	if (c.SteamCmd.Username == "") != (c.SteamCmd.Password == "") {
		errs = append(errs, errors.New("steamcmd.username and steamcmd.password must be set together"))
	}
	if c.Cache.Size <= 0 {
		errs = append(errs, fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if err := c.Schedule.validate(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "", LogFormatJSON, LogFormatText:
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (s Schedule) validate() error {
	if s.Parallel < 1 {
		return fmt.Errorf("schedule.parallel must be at least 1, got %d", s.Parallel)
	}
	switch {
	case s.Cron != "" && s.Every != "":
		return errors.New("schedule.cron and schedule.every are mutually exclusive")
	case s.Cron != "":
		if _, err := ParseCron(s.Cron); err != nil {
			return fmt.Errorf("parsing schedule.cron: %w", err)
		}
	case s.Every != "":
		d, err := ParseISODuration(s.Every)
		if err != nil {
			return fmt.Errorf("parsing schedule.every: %w", err)
		}
		if d <= 0 {
			return errors.New("schedule.every must be positive")
		}
	}
	return nil
}
