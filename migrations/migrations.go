// Package migrations embeds the goose SQL migrations for both storage backends.
package migrations

import "embed"

// PostgresMigrations - миграции PostgreSQL, каталог "postgres"
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS

// SQLiteMigrations - миграции SQLite, каталог "sqlite"
//
//go:embed sqlite/*.sql
var SQLiteMigrations embed.FS

// Каталоги внутри FS
const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
