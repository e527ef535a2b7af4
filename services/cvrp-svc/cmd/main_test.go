package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvrp/migrations"
	"cvrp/pkg/database"
)

const seedSQL = `
INSERT INTO locations (location_id, name, type, latitude, longitude) VALUES
	(1, 'Depot', 'WAREHOUSE', 55.75, 37.61),
	(2, 'Store', 'DESTINATION', 55.0, 37.0);
INSERT INTO vehicles (vehicle_id, name, capacity, range_km, speed_kmh) VALUES (1, 'Van', 100, 500, 50);
INSERT INTO inventory_types (inventory_id, name, volume_per_unit) VALUES (1, 'Box', 1);
INSERT INTO inventory (location_id, inventory_id, quantity) VALUES (1, 1, 100);
INSERT INTO demand (location_id, inventory_id, quantity) VALUES (2, 1, 50);
INSERT INTO routes (route_id, origin_id, destination_id, distance_km) VALUES (1, 1, 2, 100);
INSERT INTO vehicle_locations (vehicle_type_id, location_id, quantity) VALUES (1, 1, 1);
`

// seedDatabase создаёт файл базы с минимальной сетью
func seedDatabase(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cvrp.db")

	db, err := database.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, database.NewMigrator(db, database.DialectSQLite, migrations.SQLiteMigrations, migrations.SQLiteDir).Up(ctx))
	_, err = db.ExecContext(ctx, seedSQL)
	require.NoError(t, err)

	return path
}

func countDeliveries(t *testing.T, path string) int {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM deliveries").Scan(&n))
	return n
}

func TestRun_SolvesAndSaves(t *testing.T) {
	path := seedDatabase(t)
	textfile := filepath.Join(t.TempDir(), "cvrp.prom")
	t.Setenv("CVRP_METRICS_TEXTFILE_PATH", textfile)

	var stdout, stderr bytes.Buffer
	code := run([]string{"--db", path, "--max-hops", "1", "--details"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Total vehicles used: 1")
	assert.Contains(t, out, "Total distance: 100.00 km")
	assert.Contains(t, out, "Demand fulfillment rate: 100.00% (grade A)")
	assert.Contains(t, out, "Depot: 1 vehicles")
	assert.Contains(t, out, "50 Box")
	assert.Contains(t, out, "Saved 1 deliveries to database")

	assert.Equal(t, 1, countDeliveries(t, path))

	prom, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "cvrp_solver_runs_total")
}

func TestRun_NoSave(t *testing.T) {
	path := seedDatabase(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"--db", path, "--no-save"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "Total vehicles used: 1")
	assert.NotContains(t, stdout.String(), "Saved")
	assert.Zero(t, countDeliveries(t, path))
}

func TestRun_DirectOnly(t *testing.T) {
	path := seedDatabase(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"--db", path, "--max-hops", "0", "--no-save"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	// Прямое ребро допускается и при нуле промежуточных остановок
	assert.Contains(t, stdout.String(), "Total vehicles used: 1")
}

func TestRun_InvalidArguments(t *testing.T) {
	path := seedDatabase(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "unknown flag", args: []string{"--bogus"}, code: 2},
		{name: "positional argument", args: []string{"extra"}, code: 2},
		{name: "negative hops", args: []string{"--db", path, "--max-hops", "-1"}, code: 2},
		{name: "negative vehicles", args: []string{"--db", path, "--max-vehicles", "-3"}, code: 2},
		{name: "help", args: []string{"-h"}, code: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.code, run(tt.args, &stdout, &stderr))
		})
	}
}

func TestRun_InvalidDataset(t *testing.T) {
	path := seedDatabase(t)

	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE inventory SET quantity = -1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var stdout, stderr bytes.Buffer
	code := run([]string{"--db", path, "--no-save"}, &stdout, &stderr)

	assert.Equal(t, 3, code)
	assert.Contains(t, stderr.String(), "solve failed")
}

func TestRun_UnsupportedDriver(t *testing.T) {
	t.Setenv("CVRP_DATABASE_DRIVER", "oracle")

	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)

	// Драйвер отклоняется ещё при валидации конфигурации
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "failed to load config")
}

func TestRun_Timeout(t *testing.T) {
	path := seedDatabase(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"--db", path, "--timeout", "1ns"}, &stdout, &stderr)

	// Истёкший срок - это прерывание, а не сбой хранилища
	assert.Equal(t, 130, code)
	assert.Empty(t, stdout.String())
	assert.Zero(t, countDeliveries(t, path))
}

func TestRun_RefreshCache(t *testing.T) {
	path := seedDatabase(t)
	t.Setenv("CVRP_CACHE_ENABLED", "true")

	var stdout, stderr bytes.Buffer
	code := run([]string{"--db", path, "--refresh"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "Total vehicles used: 1")
	assert.Equal(t, 1, countDeliveries(t, path))
}

func TestOptions_Overrides(t *testing.T) {
	var stderr bytes.Buffer

	opts, err := parseFlags([]string{"--db", "x.db", "--max-vehicles", "5", "--no-save", "--migrate", "--refresh"}, &stderr)
	require.NoError(t, err)
	assert.True(t, opts.refresh)

	assert.Equal(t, map[string]any{
		"database.driver":       "sqlite",
		"database.database":     "x.db",
		"solver.max_vehicles":   5,
		"solver.save_solution":  false,
		"database.auto_migrate": true,
	}, opts.overrides())

	// Флаги со значениями по умолчанию не перекрывают конфигурацию
	opts, err = parseFlags(nil, &stderr)
	require.NoError(t, err)
	assert.Empty(t, opts.overrides())
}
