package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/lovematch/core/config"
	coredatabase "github.com/m3rciful/lovematch/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunSkipsDatabaseWithoutDriver(t *testing.T) {
	called := false
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			called = true
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if called || res.DB != nil {
		t.Fatal("connect must not run without a driver")
	}
}

func TestRunMigratesBeforeConnect(t *testing.T) {
	var order []string
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: "x.db"},
		LoggerInit: noLogger,
		Migrate: func(coredatabase.Config) error {
			order = append(order, "migrate")
			return nil
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			order = append(order, "connect")
			return &sqlx.DB{}, nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(order) != 2 || order[0] != "migrate" || order[1] != "connect" {
		t.Fatalf("order = %v", order)
	}
}

func TestRunStopsOnMigrationError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverPostgres},
		LoggerInit: noLogger,
		Migrate:    func(coredatabase.Config) error { return boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestResultCloseWithoutDB(t *testing.T) {
	var nilResult *Result
	if err := nilResult.Close(); err != nil {
		t.Fatalf("nil result close: %v", err)
	}
	if err := (&Result{}).Close(); err != nil {
		t.Fatalf("empty result close: %v", err)
	}
}
