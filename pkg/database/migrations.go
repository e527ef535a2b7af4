package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"cvrp/pkg/logger"
)

// Диалекты goose
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// goose хранит FS и диалект глобально
var gooseMu sync.Mutex

// Migrator управляет миграциями
type Migrator struct {
	db         *sql.DB
	owned      bool // db открыт мигратором и закрывается в Close
	dialect    string
	migrations fs.FS
	dir        string
}

// NewMigrator создаёт мигратор поверх database/sql
func NewMigrator(db *sql.DB, dialect string, migrations fs.FS, dir string) *Migrator {
	return &Migrator{db: db, dialect: dialect, migrations: migrations, dir: dir}
}

// NewPostgresMigrator создаёт мигратор поверх пула pgx
func NewPostgresMigrator(pool *pgxpool.Pool, migrations fs.FS, dir string) *Migrator {
	m := NewMigrator(stdlib.OpenDBFromPool(pool), DialectPostgres, migrations, dir)
	m.owned = true
	return m
}

// Close освобождает обёртку database/sql, если её создал мигратор
func (m *Migrator) Close() error {
	if m.owned {
		return m.db.Close()
	}
	return nil
}

func (m *Migrator) run(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(m.migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return fn()
}

// Up применяет все миграции
func (m *Migrator) Up(ctx context.Context) error {
	err := m.run(func() error {
		return goose.UpContext(ctx, m.db, m.dir)
	})
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Log.Info("Migrations applied successfully", "dialect", m.dialect)
	return nil
}

// Version возвращает текущую версию схемы
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var version int64
	err := m.run(func() error {
		v, err := goose.GetDBVersionContext(ctx, m.db)
		version = v
		return err
	})
	return version, err
}
