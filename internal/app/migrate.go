package app

import (
	coredatabase "github.com/m3rciful/lovematch/core/database"
	"github.com/m3rciful/lovematch/migrations"
)

// Migrate applies the schema from database.migrations_dir when set and
// from the scripts compiled into the binary otherwise.
func Migrate(db coredatabase.Config) error {
	if db.MigrationsDir != "" {
		return coredatabase.RunMigrations(db)
	}
	return coredatabase.MigrateFS(db, migrations.FS, "embedded")
}
