// Package config is the application configuration: the reusable core
// sections plus database, storage, metrics and bot texts.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	coreconfig "github.com/m3rciful/lovematch/core/config"
	coredatabase "github.com/m3rciful/lovematch/core/database"
	"github.com/m3rciful/lovematch/internal/store"
)

// MetricsConfig controls the Prometheus listener. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// BotConfig holds user-facing settings.
type BotConfig struct {
	SupportHandle string `yaml:"support_handle" envconfig:"SUPPORT_HANDLE"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Storage  store.Config        `yaml:"storage"`
	Metrics  MetricsConfig       `yaml:"metrics"`
	Bot      BotConfig           `yaml:"bot"`
}

// CoreConfig exposes the embedded core section to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, applies environment overrides and normalizes the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and derives the database section from the
// storage backend: SQL backends select the matching driver, other backends
// leave the database disabled.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", coreconfig.ErrInvalid)
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if backend == "" {
		backend = store.BackendFile
	}
	cfg.Storage.Backend = backend

	switch backend {
	case store.BackendFile:
		if cfg.Storage.FilePath == "" {
			cfg.Storage.FilePath = "users.json"
		}
		cfg.Database.Driver = ""
	case store.BackendMemory:
		cfg.Database.Driver = ""
	case store.BackendRedis:
		if strings.TrimSpace(cfg.Storage.RedisAddr) == "" {
			return fmt.Errorf("%w: storage.redis_addr is required for the redis backend", coreconfig.ErrInvalid)
		}
		if cfg.Storage.RedisDB < 0 {
			return fmt.Errorf("%w: storage.redis_db must be >= 0", coreconfig.ErrInvalid)
		}
		cfg.Database.Driver = ""
	case store.BackendPostgres:
		cfg.Database.Driver = coredatabase.DriverPostgres
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			return fmt.Errorf("%w: database.host and database.name are required for the postgres backend", coreconfig.ErrInvalid)
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
	case store.BackendSQLite:
		cfg.Database.Driver = coredatabase.DriverSQLite
		if cfg.Database.Path == "" {
			cfg.Database.Path = "lovematch.db"
		}
		cfg.Database.Path = filepath.Clean(cfg.Database.Path)
	default:
		return fmt.Errorf("%w: storage.backend %q; allowed: file, postgres, sqlite, redis, memory", coreconfig.ErrInvalid, cfg.Storage.Backend)
	}

	if cfg.Database.MaxConnections < 0 {
		return fmt.Errorf("%w: database.max_connections must be >= 0", coreconfig.ErrInvalid)
	}
	cfg.Bot.SupportHandle = strings.TrimSpace(cfg.Bot.SupportHandle)
	cfg.Metrics.Listen = strings.TrimSpace(cfg.Metrics.Listen)
	return nil
}
