package migrations

import (
	"embed"

	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var migrationFS embed.FS

// Migrations is the bun/migrate registry applied by cmd at startup.
var Migrations = migrate.NewMigrations()

func init() {
	if err := Migrations.Discover(migrationFS); err != nil {
		panic(err)
	}
}
