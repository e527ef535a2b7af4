package repository

import (
	"context"
	"fmt"
	"strings"

	"cvrp/migrations"
	"cvrp/pkg/config"
	"cvrp/pkg/database"
	"cvrp/pkg/logger"
)

// RepositoryType тип репозитория
type RepositoryType string

const (
	RepositoryTypePostgres RepositoryType = "postgres"
	RepositoryTypeSQLite   RepositoryType = "sqlite"
)

// DefaultSQLitePath - файл базы по умолчанию
const DefaultSQLitePath = "cvrp.db"

// NewFromConfig открывает хранилище по конфигурации и при необходимости
// применяет миграции
func NewFromConfig(ctx context.Context, cfg *config.DatabaseConfig) (Repository, error) {
	switch RepositoryType(strings.ToLower(cfg.Driver)) {
	case RepositoryTypeSQLite, "":
		return newSQLiteRepository(ctx, cfg)

	case RepositoryTypePostgres, "postgresql":
		return newPostgresRepository(ctx, cfg)

	default:
		return nil, fmt.Errorf("unsupported repository type: %s", cfg.Driver)
	}
}

func newSQLiteRepository(ctx context.Context, cfg *config.DatabaseConfig) (Repository, error) {
	path := cfg.Database
	if path == "" {
		path = DefaultSQLitePath
	}

	db, err := database.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		m := database.NewMigrator(db, database.DialectSQLite, migrations.SQLiteMigrations, migrations.SQLiteDir)
		if err := migrate(ctx, m); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return NewSQLiteRepository(db), nil
}

func newPostgresRepository(ctx context.Context, cfg *config.DatabaseConfig) (Repository, error) {
	db, err := database.NewPostgresDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.AutoMigrate {
		m := database.NewPostgresMigrator(db.Pool(), migrations.PostgresMigrations, migrations.PostgresDir)
		err := migrate(ctx, m)
		if closeErr := m.Close(); closeErr != nil {
			logger.Log.Warn("failed to close migrator", "error", closeErr)
		}
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return NewPostgresRepository(db), nil
}

// migrate применяет миграции и пишет в лог итоговую версию схемы
func migrate(ctx context.Context, m *database.Migrator) error {
	if err := m.Up(ctx); err != nil {
		return err
	}

	version, err := m.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Log.Info("Schema is up to date", "version", version)
	return nil
}
