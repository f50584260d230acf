package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/lovematch/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	readyTimeout   = 30 * time.Second
	readyInterval  = 2 * time.Second
)

// Connect opens the database, sizes the pool and pings it once.
func Connect(cfg Config) (*sqlx.DB, error) {
	dsn, err := driverDSN(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	attrs := []slog.Attr{slog.String("driver", cfg.Driver), slog.String("db", target(cfg))}
	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, dsn)
	attrs = append(attrs, slog.Duration("duration", logger.RoundMS(time.Since(start))))
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect",
			append(attrs, slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if n := poolSize(cfg); n > 0 {
		db.SetMaxOpenConns(n)
		db.SetMaxIdleConns(n)
		attrs = append(attrs, slog.Int("pool_open", n))
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect", attrs...)
	return db, nil
}

// poolSize pins SQLite to a single connection so concurrent saves queue in
// the pool instead of failing with SQLITE_BUSY.
func poolSize(cfg Config) int {
	if cfg.Driver == DriverSQLite {
		return 1
	}
	return cfg.MaxConnections
}

func driverDSN(cfg Config) (string, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return fmt.Sprintf(
			"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
		), nil
	case DriverSQLite:
		if cfg.Path == "" {
			return "", fmt.Errorf("db connect: sqlite path is required")
		}
		return cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
	default:
		return "", fmt.Errorf("db connect: unsupported driver %q", cfg.Driver)
	}
}

func target(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		return cfg.Path
	}
	return fmt.Sprintf("%s:%s/%s", cfg.Host, cfg.Port, cfg.Name)
}

// waitReady pings the database at dsn until it answers or ctx ends. A
// freshly started Postgres container refuses connections for a while.
func waitReady(ctx context.Context, driver, dsn string) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	tick := time.NewTicker(readyInterval)
	defer tick.Stop()
	for {
		err = db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready: %w", err)
		case <-tick.C:
		}
	}
}
