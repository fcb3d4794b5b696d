package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/updateio/updateio/internal/model"
)

const (
	// ConfigFile is the name of the configuration file looked up in the user
	// config directory and the working directory.
	ConfigFile = "updateio.yaml"
	// EnvPrefix prefixes the environment overrides, for example
	// UPDATEIO_STEAMCMD_PASSWORD for steamcmd.password.
	EnvPrefix = "UPDATEIO"
)

// LoadConfig reads the yaml file at path on top of model.DefaultConfig and
// applies the environment overrides. An empty path loads the defaults and
// the environment only. The result is validated.
func LoadConfig(path string) (model.Config, error) {
	v := viper.New()
	setDefaults(v, model.DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return model.Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg model.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return model.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return model.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// viper only resolves environment overrides for keys it knows about, so
// every key gets a default, empty ones included.
func setDefaults(v *viper.Viper, cfg model.Config) {
	for key, value := range map[string]any{
		"steamcmd.path":        cfg.SteamCmd.Path,
		"steamcmd.username":    cfg.SteamCmd.Username,
		"steamcmd.password":    cfg.SteamCmd.Password,
		"steamcmd.timeout":     cfg.SteamCmd.Timeout,
		"cache.size":           cfg.Cache.Size,
		"cache.ttl":            cfg.Cache.TTL,
		"schedule.auto_update": cfg.Schedule.AutoUpdate,
		"schedule.cron":        cfg.Schedule.Cron,
		"schedule.every":       cfg.Schedule.Every,
		"schedule.parallel":    cfg.Schedule.Parallel,
		"log.level":            cfg.Log.Level,
		"log.format":           cfg.Log.Format,
		"log.path":             cfg.Log.Path,
	} {
		v.SetDefault(key, value)
	}
}

// WriteConfig stores cfg as yaml at path, creating the directory.
func WriteConfig(path string, cfg model.Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return f.Close()
}
