// Package bootstrap prepares process-wide infrastructure before the bot starts.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/lovematch/core/config"
	coredatabase "github.com/m3rciful/lovematch/core/database"
	"github.com/m3rciful/lovematch/core/logger"
)

// Options control the bootstrap pipeline. Nil hooks use the core defaults.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB is nil when profiles are not kept in SQL.
type Result struct {
	DB *sqlx.DB
}

// Close releases the connection pool, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and, for SQL-backed profile storage, brings
// the schema up to date before opening the pool so no query sees an old table.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	initLogger := opts.LoggerInit
	if initLogger == nil {
		initLogger = logger.InitLogger
	}
	if err := initLogger(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if !opts.Database.Enabled() {
		logger.L.Info("", slog.String("event", "bootstrap.ready"), slog.Bool("sql", false))
		return &Result{}, nil
	}

	migrate, connect := opts.Migrate, opts.Connect
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if connect == nil {
		connect = coredatabase.Connect
	}

	start := time.Now()
	if err := migrate(opts.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	logger.L.Info("",
		slog.String("event", "bootstrap.ready"),
		slog.Bool("sql", true),
		slog.String("driver", opts.Database.Driver),
		slog.Duration("duration", logger.Took(start)),
	)
	return &Result{DB: db}, nil
}
