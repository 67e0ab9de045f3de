package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/cubny/taximeter"
	"github.com/cubny/taximeter/internal/storage"
)

// EnvPrefix is prepended to every environment variable, e.g. TAXIMETER_HTTP_ADDR
const EnvPrefix = "TAXIMETER"

type Config struct {
	HTTPAddr         string               `mapstructure:"HTTP_ADDR"`
	Store            string               `mapstructure:"STORE"`
	StoreDSN         string               `mapstructure:"STORE_DSN"`
	SnapshotInterval time.Duration        `mapstructure:"SNAPSHOT_INTERVAL"`
	TickInterval     time.Duration        `mapstructure:"TICK_INTERVAL"`
	ExportDir        string               `mapstructure:"EXPORT_DIR"`
	ConfigFile       string               `mapstructure:"CONFIG_FILE"`
	Concurrency      int                  `mapstructure:"CONCURRENCY"`
	Permission       taximeter.Permission `mapstructure:"PERMISSION"`
	ReplayFile       string               `mapstructure:"REPLAY_FILE"`
	ReplayInterval   time.Duration        `mapstructure:"REPLAY_INTERVAL"`
	CORSOrigins      []string             `mapstructure:"CORS_ORIGINS"`
	Presets          taximeter.Presets    `mapstructure:"PRESETS"`
}

// Load reads the environment and, when TAXIMETER_CONFIG_FILE is set, the config file
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file; an empty path falls back to TAXIMETER_CONFIG_FILE.
// The built-in presets are used when the file lists none.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE", string(storage.KindFile))
	v.SetDefault("STORE_DSN", "data")
	v.SetDefault("SNAPSHOT_INTERVAL", 5*time.Second)
	v.SetDefault("TICK_INTERVAL", time.Second)
	v.SetDefault("EXPORT_DIR", "exports")
	v.SetDefault("CONFIG_FILE", "")
	v.SetDefault("CONCURRENCY", 5)
	v.SetDefault("PERMISSION", string(taximeter.PermissionGranted))
	v.SetDefault("REPLAY_FILE", "")
	v.SetDefault("REPLAY_INTERVAL", time.Second)
	v.SetDefault("CORS_ORIGINS", []string{"*"})

	if path == "" {
		path = v.GetString("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = path
	if len(cfg.Presets) == 0 {
		cfg.Presets = slices.Clone(taximeter.DefaultPresets)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case !storage.Supported(c.Store):
		return fmt.Errorf("unknown store %q, want one of %v", c.Store, storage.Kinds)
	case c.SnapshotInterval <= 0:
		return errors.New("snapshot interval should be greater than 0")
	case c.TickInterval <= 0:
		return errors.New("tick interval should be greater than 0")
	case c.ReplayInterval < 0:
		return errors.New("replay interval should not be negative")
	case c.Concurrency <= 0:
		return errors.New("concurrency should be greater than 0")
	case c.Permission != taximeter.PermissionGranted && c.Permission != taximeter.PermissionDenied:
		return fmt.Errorf("unknown permission %q", c.Permission)
	}
	return c.Presets.Validate()
}
