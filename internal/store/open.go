package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Backends accepted by Config.Backend.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config selects and configures the persister.
type Config struct {
	Backend       string `yaml:"backend" envconfig:"STORAGE_BACKEND"`
	FilePath      string `yaml:"file_path" envconfig:"STORAGE_FILE_PATH"`
	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB"`
	RedisPrefix   string `yaml:"redis_prefix" envconfig:"REDIS_PREFIX"`
}

// SQL reports whether the backend needs a database connection.
func (c Config) SQL() bool {
	b := strings.ToLower(c.Backend)
	return b == BackendPostgres || b == BackendSQLite
}

// Open builds the persister for cfg. db must be set for SQL backends. The
// returned close func releases backend resources and is never nil.
func Open(ctx context.Context, cfg Config, db *sqlx.DB) (Persister, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(cfg.Backend) {
	case "", BackendFile:
		path := cfg.FilePath
		if path == "" {
			path = "users.json"
		}
		return &FileStore{Path: path}, noop, nil
	case BackendPostgres, BackendSQLite:
		if db == nil {
			return nil, noop, fmt.Errorf("store: backend %q needs a database connection", cfg.Backend)
		}
		return NewSQLStore(db), db.Close, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("store: redis ping %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client, cfg.RedisPrefix), client.Close, nil
	case BackendMemory:
		return &MemoryStore{}, noop, nil
	}
	return nil, noop, fmt.Errorf("store: unknown backend %q", cfg.Backend)
}
