package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader(WithConfigPaths()).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "cvrp-solver" {
		t.Errorf("expected app name 'cvrp-solver', got %s", cfg.App.Name)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Solver.MaxHops != 2 {
		t.Errorf("expected max hops 2, got %d", cfg.Solver.MaxHops)
	}
	if cfg.Solver.MaxVehicles != 0 {
		t.Errorf("expected unlimited vehicles, got %d", cfg.Solver.MaxVehicles)
	}
	if cfg.Solver.MaxPaths != 3 {
		t.Errorf("expected max paths 3, got %d", cfg.Solver.MaxPaths)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.Database.Driver)
	}
}

func TestLoader_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: custom-solver
  version: 2.0.0
  environment: staging
log:
  level: debug
solver:
  max_hops: 4
  max_vehicles: 10
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := NewLoader(WithConfigPaths(configPath)).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "custom-solver" {
		t.Errorf("expected app name 'custom-solver', got %s", cfg.App.Name)
	}
	if cfg.App.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %s", cfg.App.Version)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Log.Level)
	}
	if cfg.Solver.MaxHops != 4 || cfg.Solver.MaxVehicles != 10 {
		t.Errorf("expected solver 4/10, got %d/%d", cfg.Solver.MaxHops, cfg.Solver.MaxVehicles)
	}
	// Не указано в файле - значение по умолчанию
	if cfg.Solver.MaxPaths != 3 {
		t.Errorf("expected default max paths 3, got %d", cfg.Solver.MaxPaths)
	}
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("CVRP_APP_NAME", "env-solver")
	t.Setenv("CVRP_SOLVER_MAX_HOPS", "5")
	t.Setenv("CVRP_DATABASE_SSL_MODE", "require")

	cfg, err := NewLoader(WithConfigPaths()).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-solver" {
		t.Errorf("expected app name 'env-solver', got %s", cfg.App.Name)
	}
	if cfg.Solver.MaxHops != 5 {
		t.Errorf("expected max hops 5, got %d", cfg.Solver.MaxHops)
	}
	if cfg.Database.SSLMode != "require" {
		t.Errorf("expected ssl mode 'require', got %s", cfg.Database.SSLMode)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: file-solver
solver:
  max_hops: 3
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("CVRP_APP_NAME", "env-override")

	cfg, err := NewLoader(WithConfigPaths(configPath)).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-override" {
		t.Errorf("expected env override, got %s", cfg.App.Name)
	}
	if cfg.Solver.MaxHops != 3 {
		t.Errorf("expected max hops from file 3, got %d", cfg.Solver.MaxHops)
	}
}

func TestLoader_OverridesWin(t *testing.T) {
	t.Setenv("CVRP_SOLVER_MAX_HOPS", "5")

	cfg, err := NewLoader(
		WithConfigPaths(),
		WithOverrides(map[string]any{"solver.max_hops": 1, "solver.max_vehicles": 7}),
	).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Solver.MaxHops != 1 {
		t.Errorf("expected override max hops 1, got %d", cfg.Solver.MaxHops)
	}
	if cfg.Solver.MaxVehicles != 7 {
		t.Errorf("expected override max vehicles 7, got %d", cfg.Solver.MaxVehicles)
	}
}

func TestLoader_InvalidOverrideFailsValidation(t *testing.T) {
	_, err := NewLoader(
		WithConfigPaths(),
		WithOverrides(map[string]any{"solver.max_hops": -2}),
	).Load()
	if err == nil {
		t.Fatal("expected validation error for negative max hops")
	}
}

func TestLoader_ConfigEnvVar(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom-config.yaml")

	configContent := `
app:
  name: config-env-var-service
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("CONFIG_PATH", configPath)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "config-env-var-service" {
		t.Errorf("expected 'config-env-var-service', got %s", cfg.App.Name)
	}
}
