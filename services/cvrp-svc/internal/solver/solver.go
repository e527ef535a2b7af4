package solver

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"cvrp/pkg/apperror"
	"cvrp/pkg/domain"
	"cvrp/pkg/logger"
	"cvrp/services/cvrp-svc/internal/graph"
	"cvrp/services/cvrp-svc/internal/routing"
)

// Options - параметры одного запуска
type Options struct {
	MaxHops int
	// MaxVehicles - общий лимит рейсов, 0 = без ограничения
	MaxVehicles int
}

// Solution - результат запуска
type Solution struct {
	Deliveries  []domain.Delivery
	Statistics  *domain.Statistics
	Unfulfilled map[domain.Key]int64
	// PathSearches - число выполненных поисков пути
	PathSearches int64
}

// Solver - жадный распределитель: обходит локации по приоритету спроса,
// для каждой выбирает лучший склад и фиксирует доставку.
type Solver struct {
	ds      *domain.Dataset
	state   *State
	finder  *routing.Finder
	planner *Planner
	clock   func() time.Time
	log     *slog.Logger
}

// Option - параметр солвера
type Option func(*config)

type config struct {
	maxPaths int
	workers  int
	clock    func() time.Time
}

// WithPaths задаёт число альтернативных путей на пару
func WithPaths(n int) Option {
	return func(c *config) { c.maxPaths = n }
}

// WithParallelism задаёт число параллельных поисков пути
func WithParallelism(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithClock задаёт источник времени для меток доставок
func WithClock(clock func() time.Time) Option {
	return func(c *config) { c.clock = clock }
}

// New собирает солвер над набором данных: граф, оракул, поиск путей,
// рабочее состояние и планировщик
func New(ds *domain.Dataset, opts ...Option) *Solver {
	cfg := config{maxPaths: domain.DefaultMaxPaths, workers: 1, clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	oracle := graph.NewOracle(ds)
	routes := domain.BuildRouteGraph(ds.Routes)
	finder := routing.NewFinder(ds, routes, oracle)
	state := NewState(ds)

	log := logger.WithComponent("allocator")
	log.Debug("Route graph built", "routes", len(ds.Routes), "edges", routes.EdgeCount())

	return &Solver{
		ds:     ds,
		state:  state,
		finder: finder,
		planner: NewPlanner(ds, state, finder, oracle,
			WithMaxPaths(cfg.maxPaths),
			WithWorkers(cfg.workers),
		),
		clock: cfg.clock,
		log:   log,
	}
}

// Solve выполняет полный цикл распределения
func (s *Solver) Solve(ctx context.Context, opts Options) (*Solution, error) {
	if opts.MaxHops < 0 {
		return nil, apperror.NewWithField(apperror.CodeInvalidArgument, "max hops must be non-negative", "max_hops")
	}
	if opts.MaxVehicles < 0 {
		return nil, apperror.NewWithField(apperror.CodeInvalidArgument, "max vehicles must be non-negative", "max_vehicles")
	}

	s.state.Reset()
	searchesBefore := s.finder.Searches()

	var deliveries []domain.Delivery
	capped := func() bool {
		return opts.MaxVehicles > 0 && len(deliveries) >= opts.MaxVehicles
	}

	for _, loc := range s.rankLocations() {
		if capped() {
			s.log.Info("vehicle limit reached", "max_vehicles", opts.MaxVehicles)
			break
		}

		for !capped() {
			if err := ctx.Err(); err != nil {
				return nil, apperror.Wrap(err, apperror.CodeCanceled, "solve interrupted")
			}

			bundle := s.state.OutstandingLines(loc)
			if len(bundle) == 0 {
				break
			}

			best, err := s.bestPlan(ctx, loc, bundle, opts.MaxHops)
			if err != nil {
				return nil, err
			}
			if best == nil {
				s.log.Debug("no plan for location, moving on", "location", loc, "outstanding", bundle.Total())
				break
			}

			if err := s.state.Commit(loc, best); err != nil {
				return nil, err
			}
			deliveries = append(deliveries, s.newDelivery(best))
		}
	}

	unfulfilled := s.state.Unfulfilled()

	return &Solution{
		Deliveries:   deliveries,
		Statistics:   domain.CalculateStatistics(s.ds, deliveries, unfulfilled),
		Unfulfilled:  unfulfilled,
		PathSearches: s.finder.Searches() - searchesBefore,
	}, nil
}

// rankLocations упорядочивает локации со спросом по максимальному
// приоритету (по убыванию), при равенстве - по id
func (s *Solver) rankLocations() []int64 {
	maxPriority := make(map[int64]int)
	for k, dm := range s.ds.Demand {
		if p, ok := maxPriority[k.Location]; !ok || dm.Priority > p {
			maxPriority[k.Location] = dm.Priority
		}
	}

	ids := make([]int64, 0, len(maxPriority))
	for id := range maxPriority {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if maxPriority[ids[i]] != maxPriority[ids[j]] {
			return maxPriority[ids[i]] > maxPriority[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// bestPlan пробует каждый склад и оставляет план с наибольшей загрузкой
func (s *Solver) bestPlan(ctx context.Context, loc int64, bundle domain.Loading, maxHops int) (*Plan, error) {
	var best *Plan
	for _, wh := range s.ds.WarehouseIDs() {
		held := s.holdBack(wh, loc, bundle)
		if len(held) == 0 {
			continue
		}

		plan, err := s.planner.Plan(ctx, wh, held, maxHops)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			continue
		}
		if best == nil || plan.Loading.Total() > best.Loading.Total() {
			best = plan
		}
	}
	return best, nil
}

// holdBack урезает набор спроса до того, что склад может отгрузить одним
// рейсом: по убыванию приоритета строки ограничиваются остатком на складе,
// суммарный объём - вместимостью самого крупного доступного ТС.
// Если весь набор помещается, он возвращается без изменений.
func (s *Solver) holdBack(origin, loc int64, bundle domain.Loading) domain.Loading {
	var capacity float64
	hasVehicle := false
	for _, vid := range s.ds.VehicleIDs() {
		if s.state.Vehicles(origin, vid) > 0 {
			capacity = math.Max(capacity, s.ds.Vehicles[vid].Capacity)
			hasVehicle = true
		}
	}
	if !hasVehicle {
		return nil
	}

	items := bundle.Items()
	sort.SliceStable(items, func(i, j int) bool {
		return s.priority(loc, items[i]) > s.priority(loc, items[j])
	})

	held := make(domain.Loading)
	remaining := capacity
	for _, item := range items {
		qty := domain.MinInt64(bundle[item], s.state.Available(origin, item))
		if qty <= 0 {
			continue
		}

		if it, ok := s.ds.InventoryTypes[item]; ok && it.VolumePerUnit > 0 {
			fit := int64(math.Floor(remaining/it.VolumePerUnit + domain.Epsilon))
			qty = domain.MinInt64(qty, fit)
		}
		if qty <= 0 {
			continue
		}

		held[item] = qty
		if it, ok := s.ds.InventoryTypes[item]; ok {
			remaining -= it.Volume(qty)
		}
	}

	return held
}

func (s *Solver) priority(loc, item int64) int {
	if dm := s.ds.DemandFor(loc, item); dm != nil {
		return dm.Priority
	}
	return 0
}

func (s *Solver) newDelivery(p *Plan) domain.Delivery {
	start := s.clock()
	return domain.Delivery{
		VehicleID:     p.VehicleID,
		OriginID:      p.OriginID,
		DestinationID: p.DestinationID,
		Path:          p.Path,
		DistanceKm:    p.DistanceKm,
		TimeHours:     p.TimeHours,
		Loading:       p.Loading,
		Absorbed:      p.Absorbed,
		StartTime:     start,
		EndTime:       start.Add(time.Duration(p.TimeHours * float64(time.Hour))),
	}
}
