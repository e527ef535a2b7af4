// Package main is the entry point for the cvrp solver command.
//
// The command loads a logistics network (locations, vehicles, inventory,
// demand and routes) from storage, computes a delivery plan with the greedy
// multi-hop allocator, optionally persists the plan and prints a summary.
//
// # Pipeline
//
//	┌──────────────────────────────────────────────────────────────┐
//	│  Repository (sqlite | postgres)                              │
//	│  - one read-only transaction for the whole dataset           │
//	├──────────────────────────────────────────────────────────────┤
//	│  SolveService                                                │
//	│  - solution cache lookup (memory | redis)                    │
//	│  - solver: oracle -> route graph -> path finder -> planner   │
//	│  - metrics, tracing, structured logs                         │
//	├──────────────────────────────────────────────────────────────┤
//	│  Repository.SaveSolution                                     │
//	│  - deliveries + delivery_items in one transaction            │
//	└──────────────────────────────────────────────────────────────┘
//
// # Configuration
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Command-line flags
//  2. Environment variables (prefix: CVRP_), including values from a .env file
//  3. Config file (--config, CONFIG_PATH, config.yaml, config/config.yaml, /etc/cvrp/config.yaml)
//  4. Default values
//
// Frequently used environment variables:
//
//	CVRP_DATABASE_DRIVER       - sqlite or postgres (default: sqlite)
//	CVRP_DATABASE_DATABASE     - database name, or file path for sqlite (default: cvrp.db)
//	CVRP_SOLVER_MAX_HOPS       - maximum intermediate stops (default: 2)
//	CVRP_SOLVER_MAX_VEHICLES   - maximum committed deliveries, 0 = unlimited
//	CVRP_SOLVER_WORKERS        - parallel candidate path searches (default: 4)
//	CVRP_CACHE_ENABLED         - memoise solutions by dataset hash (default: false)
//	CVRP_METRICS_TEXTFILE_PATH - write Prometheus metrics for node_exporter
//	CVRP_TRACING_ENABLED       - export spans over OTLP gRPC
//
// # Usage
//
//	cvrp --db cvrp.db --max-hops 2
//	cvrp --max-vehicles 10 --no-save --details
//	CVRP_CACHE_ENABLED=true cvrp --refresh
//	CVRP_DATABASE_DRIVER=postgres cvrp --migrate
//
// # Exit Codes
//
//	0   - success
//	1   - internal error
//	2   - invalid arguments
//	3   - invalid dataset
//	4   - storage or cache failure
//	130 - interrupted or timed out
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cvrp/pkg/apperror"
	"cvrp/pkg/cache"
	"cvrp/pkg/config"
	"cvrp/pkg/domain"
	"cvrp/pkg/logger"
	"cvrp/pkg/metrics"
	"cvrp/pkg/telemetry"
	"cvrp/services/cvrp-svc/internal/report"
	"cvrp/services/cvrp-svc/internal/repository"
	"cvrp/services/cvrp-svc/internal/service"
)

// options - разобранные флаги командной строки
type options struct {
	configPath  string
	dbPath      string
	maxHops     int
	maxVehicles int
	noSave      bool
	migrate     bool
	details     bool
	refresh     bool
	timeout     time.Duration

	// set - имена явно заданных флагов
	set map[string]bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// =========================================================================
	// Flags and .env
	// =========================================================================
	//
	// .env is optional; variables already present in the environment win.
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "Warning: failed to load .env: %v\n", err)
	}

	// =========================================================================
	// Configuration Loading
	// =========================================================================
	loaderOpts := []config.LoaderOption{config.WithOverrides(opts.overrides())}
	if opts.configPath != "" {
		loaderOpts = append(loaderOpts, config.WithConfigPaths(opts.configPath))
	}

	cfg, err := config.NewLoader(loaderOpts...).Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 2
	}

	// =========================================================================
	// Logger Initialization
	// =========================================================================
	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	// =========================================================================
	// Telemetry Initialization (OpenTelemetry)
	// =========================================================================
	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("Failed to init telemetry", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Log.Warn("Failed to shutdown telemetry", "error", err)
				}
			}()
			logger.Log.Info("Telemetry initialized", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	// =========================================================================
	// Metrics Initialization (Prometheus)
	// =========================================================================
	//
	// A batch run has no scrape endpoint; metrics go to a textfile for the
	// node_exporter textfile collector when a path is configured.
	m := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)
	if cfg.Metrics.Enabled && cfg.Metrics.TextfilePath != "" {
		defer func() {
			if err := m.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
				logger.Log.Warn("Failed to write metrics textfile", "path", cfg.Metrics.TextfilePath, "error", err)
			}
		}()
	}

	// =========================================================================
	// Storage
	// =========================================================================
	repo, err := repository.NewFromConfig(ctx, &cfg.Database)
	if err != nil {
		logger.Log.Error("Failed to open storage", "driver", cfg.Database.Driver, "error", err)
		if ctx.Err() != nil {
			return apperror.Wrap(err, apperror.CodeCanceled, "storage open interrupted").ExitCode()
		}
		return exitCode(err, apperror.CodeStorage)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Log.Warn("Failed to close storage", "error", err)
		}
	}()

	// =========================================================================
	// Cache Initialization
	// =========================================================================
	//
	// The cache is optional; a broken backend only disables memoisation.
	svcOpts := []service.Option{service.WithMetrics(m)}
	if cfg.Cache.Enabled {
		baseCache, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Log.Warn("Failed to create cache, continuing without cache", "error", err)
		} else {
			defer func() {
				logCacheStats(baseCache)
				_ = baseCache.Close()
			}()
			svcOpts = append(svcOpts, service.WithCache(cache.NewSolutionCache(baseCache, cfg.Cache.DefaultTTL)))
			logger.Log.Info("Solution cache initialized",
				"driver", cfg.Cache.Driver,
				"ttl", cfg.Cache.DefaultTTL,
			)
		}
	}

	// =========================================================================
	// Solve
	// =========================================================================
	svc := service.NewSolveService(repo, cfg.Solver, svcOpts...)

	logger.Log.Info("Solving CVRP",
		"max_hops", cfg.Solver.MaxHops,
		"max_vehicles", cfg.Solver.MaxVehicles,
		"driver", cfg.Database.Driver,
	)

	res, err := svc.Run(ctx, service.Request{
		MaxHops:     cfg.Solver.MaxHops,
		MaxVehicles: cfg.Solver.MaxVehicles,
		Save:        cfg.Solver.SaveSolution,
		Refresh:     opts.refresh,
	})
	if err != nil {
		fmt.Fprintf(stderr, "solve failed: %v\n", err)
		return apperror.ExitCode(err)
	}

	if err := (report.Summary{Details: opts.details}).Write(stdout, report.FromResult(res)); err != nil {
		logger.Log.Error("Failed to print summary", "error", err)
		return 1
	}

	return 0
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("cvrp", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.StringVar(&opts.dbPath, "db", "", "Path to SQLite database (switches the driver to sqlite)")
	fs.IntVar(&opts.maxHops, "max-hops", domain.DefaultMaxHops, "Maximum number of intermediate stops")
	fs.IntVar(&opts.maxVehicles, "max-vehicles", 0, "Maximum number of deliveries to commit (0 = unlimited)")
	fs.BoolVar(&opts.noSave, "no-save", false, "Do not persist the solution")
	fs.BoolVar(&opts.migrate, "migrate", false, "Apply schema migrations before solving")
	fs.BoolVar(&opts.details, "details", false, "Print every delivery")
	fs.BoolVar(&opts.refresh, "refresh", false, "Drop cached solutions for the dataset before solving")
	fs.DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this duration (0 = no limit)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	return opts, nil
}

// overrides переводит явно заданные флаги в ключи конфигурации
func (o *options) overrides() map[string]any {
	values := make(map[string]any)
	if o.set["db"] {
		values["database.driver"] = string(repository.RepositoryTypeSQLite)
		values["database.database"] = o.dbPath
	}
	if o.set["max-hops"] {
		values["solver.max_hops"] = o.maxHops
	}
	if o.set["max-vehicles"] {
		values["solver.max_vehicles"] = o.maxVehicles
	}
	if o.noSave {
		values["solver.save_solution"] = false
	}
	if o.migrate {
		values["database.auto_migrate"] = true
	}
	return values
}

// logCacheStats пишет счётчики кэша перед его закрытием
func logCacheStats(c cache.Cache) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats, err := c.Stats(ctx)
	if err != nil {
		logger.Log.Warn("Failed to read cache stats", "error", err)
		return
	}
	logger.Log.Info("Cache stats",
		"backend", stats.Backend,
		"keys", stats.TotalKeys,
		"hits", stats.Hits,
		"misses", stats.Misses,
		"hit_rate", stats.HitRate,
	)
}

// exitCode возвращает код выхода; ошибки без кода получают fallback
func exitCode(err error, fallback apperror.ErrorCode) int {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.ExitCode()
	}
	return apperror.New(fallback, err.Error()).ExitCode()
}
