package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"cvrp/pkg/apperror"
	"cvrp/pkg/cache"
	"cvrp/pkg/config"
	"cvrp/pkg/domain"
	"cvrp/pkg/logger"
	"cvrp/pkg/metrics"
	"cvrp/pkg/telemetry"
	"cvrp/services/cvrp-svc/internal/repository"
	"cvrp/services/cvrp-svc/internal/solver"
)

// Request - параметры одного запуска
type Request struct {
	MaxHops     int
	MaxVehicles int // 0 = без ограничения
	Save        bool
	// Refresh сбрасывает кэшированные решения набора данных перед поиском
	Refresh bool
}

// Result - итог запуска вместе с набором данных, на котором он получен
type Result struct {
	RunID        uuid.UUID
	Dataset      *domain.Dataset
	Deliveries   []domain.Delivery
	Statistics   *domain.Statistics
	Unfulfilled  map[domain.Key]int64
	PathSearches int64
	CacheHit     bool
	Saved        bool
	Duration     time.Duration
}

// SolveService - загрузка данных, распределение, кэширование и сохранение
type SolveService struct {
	repo    repository.Repository
	cache   *cache.SolutionCache
	metrics *metrics.Metrics
	cfg     config.SolverConfig
	clock   func() time.Time
}

// Option - параметр сервиса
type Option func(*SolveService)

// WithCache включает кэш решений
func WithCache(sc *cache.SolutionCache) Option {
	return func(s *SolveService) { s.cache = sc }
}

// WithMetrics задаёт контейнер метрик
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SolveService) { s.metrics = m }
}

// WithClock задаёт источник времени для доставок
func WithClock(clock func() time.Time) Option {
	return func(s *SolveService) { s.clock = clock }
}

func NewSolveService(repo repository.Repository, cfg config.SolverConfig, opts ...Option) *SolveService {
	s := &SolveService{
		repo:    repo,
		metrics: metrics.Get(),
		cfg:     cfg,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MaxPaths < 1 {
		s.cfg.MaxPaths = domain.DefaultMaxPaths
	}
	if s.cfg.Workers < 1 {
		s.cfg.Workers = 1
	}
	return s
}

// Run выполняет полный запуск: данные -> кэш или солвер -> сохранение
func (s *SolveService) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.New()
	log := logger.WithRun(runID.String())

	ctx, span := telemetry.StartSpan(ctx, "SolveService.Run",
		attribute.String(telemetry.AttrRunID, runID.String()),
		attribute.Int(telemetry.AttrMaxHops, req.MaxHops),
		attribute.Int(telemetry.AttrMaxVehicles, req.MaxVehicles),
	)
	defer span.End()

	timer := metrics.NewTimer()

	res, err := s.run(ctx, log, runID, req)
	if err != nil {
		telemetry.SetError(ctx, err)
		s.metrics.RecordFailure(timer.Elapsed())
		log.Error("Solve failed", "error", err, "code", apperror.Code(err))
		return nil, err
	}

	res.Duration = timer.Elapsed()
	s.metrics.RecordRun(res.Duration, metrics.RunResult{
		Deliveries:      len(res.Deliveries),
		FulfillmentRate: res.Statistics.FulfillmentRate,
		BalanceScore:    res.Statistics.BalanceScore,
		TotalDistanceKm: res.Statistics.TotalDistanceKm,
		PathSearches:    res.PathSearches,
	})
	telemetry.SetAttributes(ctx, telemetry.ResultAttributes(len(res.Deliveries), res.Statistics.FulfillmentRate, res.PathSearches)...)

	log.Info("Solve finished",
		"deliveries", len(res.Deliveries),
		"fulfillment_rate", res.Statistics.FulfillmentRate,
		"balance_score", res.Statistics.BalanceScore,
		"cache_hit", res.CacheHit,
		"saved", res.Saved,
		"duration", res.Duration,
	)
	return res, nil
}

func (s *SolveService) run(ctx context.Context, log *slog.Logger, runID uuid.UUID, req Request) (*Result, error) {
	if req.MaxHops < 0 {
		return nil, apperror.NewWithField(apperror.CodeInvalidArgument, "max hops must be non-negative", "max_hops")
	}
	if req.MaxVehicles < 0 {
		return nil, apperror.NewWithField(apperror.CodeInvalidArgument, "max vehicles must be non-negative", "max_vehicles")
	}

	ds, err := s.repo.LoadDataset(ctx)
	if err != nil {
		return nil, err
	}
	s.recordDataset(ctx, log, ds)

	res := &Result{RunID: runID, Dataset: ds}
	key := cache.SolveKey{MaxHops: req.MaxHops, MaxVehicles: req.MaxVehicles, MaxPaths: s.cfg.MaxPaths}

	if req.Refresh {
		s.invalidate(ctx, log, ds)
	}

	if cached := s.lookup(ctx, log, ds, key); cached != nil {
		res.CacheHit = true
		res.Deliveries = cached.Deliveries
		res.Statistics = cached.Statistics
		res.Unfulfilled = cached.UnfulfilledMap()
		res.PathSearches = cached.PathSearches
	} else {
		sol, err := solver.New(ds,
			solver.WithPaths(s.cfg.MaxPaths),
			solver.WithParallelism(s.cfg.Workers),
			solver.WithClock(s.clock),
		).Solve(ctx, solver.Options{MaxHops: req.MaxHops, MaxVehicles: req.MaxVehicles})
		if err != nil {
			return nil, err
		}

		res.Deliveries = sol.Deliveries
		res.Statistics = sol.Statistics
		res.Unfulfilled = sol.Unfulfilled
		res.PathSearches = sol.PathSearches
		s.store(ctx, log, ds, key, sol)
	}

	if req.Save && len(res.Deliveries) > 0 {
		if err := s.repo.SaveSolution(ctx, runID, res.Deliveries); err != nil {
			return nil, err
		}
		if err := s.verifySaved(ctx, runID, len(res.Deliveries)); err != nil {
			return nil, err
		}
		res.Saved = true
		log.Info("Solution saved", "deliveries", len(res.Deliveries))
	}

	return res, nil
}

// verifySaved перечитывает сохранённый запуск и сверяет число доставок
func (s *SolveService) verifySaved(ctx context.Context, runID uuid.UUID, want int) error {
	stored, err := s.repo.LoadDeliveries(ctx, runID)
	if err != nil {
		return err
	}
	if len(stored) != want {
		return apperror.Newf(apperror.CodeStorage, "saved %d deliveries, read back %d", want, len(stored)).
			WithDetails("run_id", runID.String())
	}
	return nil
}

func (s *SolveService) recordDataset(ctx context.Context, log *slog.Logger, ds *domain.Dataset) {
	s.metrics.RecordDatasetSize(map[string]int{
		"locations":       len(ds.Locations),
		"vehicles":        len(ds.Vehicles),
		"inventory_types": len(ds.InventoryTypes),
		"routes":          len(ds.Routes),
		"demand":          len(ds.Demand),
	})
	telemetry.SetAttributes(ctx, telemetry.DatasetAttributes(len(ds.Locations), len(ds.Routes), len(ds.Vehicles), len(ds.Demand))...)
	log.Info("Dataset loaded", "summary", ds.Summary(), "total_demand", ds.TotalDemand())
}

// invalidate удаляет решения набора данных; ошибки кэша не прерывают запуск
func (s *SolveService) invalidate(ctx context.Context, log *slog.Logger, ds *domain.Dataset) {
	if s.cache == nil {
		return
	}

	n, err := s.cache.Invalidate(ctx, ds)
	if err != nil {
		log.Warn("Cache invalidation failed", "error", err)
		return
	}
	log.Info("Cached solutions invalidated", "keys", n)
}

// lookup возвращает решение из кэша; ошибки кэша не прерывают запуск
func (s *SolveService) lookup(ctx context.Context, log *slog.Logger, ds *domain.Dataset, key cache.SolveKey) *cache.CachedSolution {
	if s.cache == nil {
		return nil
	}

	cached, found, err := s.cache.Get(ctx, ds, key)
	if err != nil {
		log.Warn("Cache lookup failed", "error", err)
		return nil
	}

	s.metrics.RecordCacheLookup(found)
	telemetry.SetAttributes(ctx, attribute.Bool(telemetry.AttrCacheHit, found))
	if !found {
		return nil
	}

	telemetry.AddEvent(ctx, "cache_hit", attribute.Int(telemetry.AttrDeliveries, len(cached.Deliveries)))
	log.Info("Solution served from cache", "computed_at", cached.ComputedAt)
	return cached
}

func (s *SolveService) store(ctx context.Context, log *slog.Logger, ds *domain.Dataset, key cache.SolveKey, sol *solver.Solution) {
	if s.cache == nil {
		return
	}

	err := s.cache.Set(ctx, ds, key, &cache.CachedSolution{
		Deliveries:   sol.Deliveries,
		Statistics:   sol.Statistics,
		Unfulfilled:  cache.UnfulfilledLines(sol.Unfulfilled),
		PathSearches: sol.PathSearches,
		ComputedAt:   s.clock(),
	}, 0)
	if err != nil {
		log.Warn("Failed to cache solution", "error", err)
	}
}
