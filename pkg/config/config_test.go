package config

import (
	"testing"
)

func validConfig() Config {
	return Config{
		App:      AppConfig{Name: "test-service"},
		Log:      LogConfig{Level: "info"},
		Database: DatabaseConfig{Driver: "sqlite"},
		Solver:   SolverConfig{MaxHops: 2, MaxPaths: 3, Workers: 1},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing app name", mutate: func(c *Config) { c.App.Name = "" }, wantErr: true},
		{name: "empty log level defaults to info", mutate: func(c *Config) { c.Log.Level = "" }},
		{name: "invalid log level", mutate: func(c *Config) { c.Log.Level = "invalid" }, wantErr: true},
		{name: "valid debug level", mutate: func(c *Config) { c.Log.Level = "debug" }},
		{name: "postgres driver", mutate: func(c *Config) { c.Database.Driver = "postgres" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "negative max hops", mutate: func(c *Config) { c.Solver.MaxHops = -1 }, wantErr: true},
		{name: "zero max hops is direct only", mutate: func(c *Config) { c.Solver.MaxHops = 0 }},
		{name: "negative max vehicles", mutate: func(c *Config) { c.Solver.MaxVehicles = -3 }, wantErr: true},
		{name: "zero max paths", mutate: func(c *Config) { c.Solver.MaxPaths = 0 }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Solver.Workers = 0 }, wantErr: true},
		{
			name: "cache enabled with unknown driver",
			mutate: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.Driver = "memcached"
			},
			wantErr: true,
		},
		{
			name: "cache disabled ignores driver",
			mutate: func(c *Config) {
				c.Cache.Driver = "memcached"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCacheConfig_Address(t *testing.T) {
	cfg := CacheConfig{
		Host: "redis.local",
		Port: 6379,
	}

	addr := cfg.Address()
	if addr != "redis.local:6379" {
		t.Errorf("expected 'redis.local:6379', got %s", addr)
	}
}
