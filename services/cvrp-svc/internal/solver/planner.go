package solver

import (
	"context"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"cvrp/pkg/domain"
	"cvrp/pkg/logger"
	"cvrp/services/cvrp-svc/internal/graph"
	"cvrp/services/cvrp-svc/internal/routing"
)

// Веса составляющих оценки кандидата
const (
	weightPriority = 2.0
	weightDistance = 0.5
	weightTime     = 0.5
	weightDemand   = 1.0
	weightHops     = 0.5
)

// Plan - лучший найденный вариант доставки из одного склада
type Plan struct {
	VehicleID     int64
	OriginID      int64
	DestinationID int64
	Path          []int64
	DistanceKm    float64
	TimeHours     float64
	Loading       domain.Loading
	Absorbed      domain.Loading
	Score         float64
}

// Planner выбирает тип ТС, маршрут и загрузку для набора спроса.
// Поиск путей по парам (ТС, пункт назначения) идёт параллельно, выбор
// лучшего - последовательно в детерминированном порядке.
type Planner struct {
	ds       *domain.Dataset
	state    *State
	finder   *routing.Finder
	oracle   *graph.Oracle
	maxPaths int
	workers  int
	log      *slog.Logger
}

// PlannerOption - параметр планировщика
type PlannerOption func(*Planner)

// WithMaxPaths задаёт число альтернативных путей на пару
func WithMaxPaths(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.maxPaths = n
		}
	}
}

// WithWorkers задаёт параллелизм поиска путей
func WithWorkers(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPlanner создаёт планировщик
func NewPlanner(ds *domain.Dataset, state *State, finder *routing.Finder, oracle *graph.Oracle, opts ...PlannerOption) *Planner {
	p := &Planner{
		ds:       ds,
		state:    state,
		finder:   finder,
		oracle:   oracle,
		maxPaths: domain.DefaultMaxPaths,
		workers:  1,
		log:      logger.WithComponent("planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type candidateTask struct {
	vehicle     *domain.Vehicle
	destination int64
}

type candidate struct {
	path     []int64
	distance float64
	time     float64
	absorbed domain.Loading
	score    float64
}

// Plan возвращает лучший план доставки bundle из origin или nil, если ни
// одна комбинация (ТС, пункт назначения, путь) не подходит.
func (p *Planner) Plan(ctx context.Context, origin int64, bundle domain.Loading, maxHops int) (*Plan, error) {
	if len(bundle) == 0 {
		return nil, nil
	}

	var totalVolume float64
	for item, qty := range bundle {
		it, err := p.ds.InventoryType(item)
		if err != nil {
			return nil, err
		}
		totalVolume += it.Volume(qty)
	}

	// Весь набор должен быть на складе; частичная загрузка здесь не делается
	for item, qty := range bundle {
		if p.state.Available(origin, item) < qty {
			return nil, nil
		}
	}

	var tasks []candidateTask
	destinations := p.state.DemandLocations()

	for _, vid := range p.ds.VehicleIDs() {
		if p.state.Vehicles(origin, vid) <= 0 {
			continue
		}
		v := p.ds.Vehicles[vid]
		if v.Capacity < totalVolume-domain.Epsilon {
			continue
		}
		for _, dest := range destinations {
			if dest == origin {
				continue
			}
			tasks = append(tasks, candidateTask{vehicle: v, destination: dest})
		}
	}

	if len(tasks) == 0 {
		return nil, nil
	}

	results := make([][]candidate, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, task := range tasks {
		g.Go(func() error {
			cands, err := p.evaluate(gctx, origin, bundle, maxHops, task)
			if err != nil {
				return err
			}
			results[i] = cands
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Первый найденный при равенстве оценок остаётся лучшим
	var best *Plan
	bestScore := math.Inf(-1)
	for i, cands := range results {
		for _, c := range cands {
			if c.score > bestScore {
				bestScore = c.score
				best = &Plan{
					VehicleID:     tasks[i].vehicle.ID,
					OriginID:      origin,
					DestinationID: tasks[i].destination,
					Path:          c.path,
					DistanceKm:    c.distance,
					TimeHours:     c.time,
					Loading:       bundle.Clone(),
					Absorbed:      c.absorbed,
					Score:         c.score,
				}
			}
		}
	}

	if best != nil {
		p.log.Debug("plan selected",
			"origin", origin,
			"destination", best.DestinationID,
			"vehicle", best.VehicleID,
			"path", best.Path,
			"score", best.Score,
			"candidates", len(tasks),
		)
	}

	return best, nil
}

// evaluate ищет пути для одной пары и оценивает каждый. Только чтение.
func (p *Planner) evaluate(ctx context.Context, origin int64, loading domain.Loading, maxHops int, task candidateTask) ([]candidate, error) {
	paths, err := p.finder.FindAllPaths(ctx, origin, task.destination, task.vehicle.RangeKm, maxHops, p.maxPaths,
		routing.ForVehicle(task.vehicle.ID))
	if err != nil {
		return nil, err
	}

	if len(paths) == 0 {
		return nil, nil
	}

	absorbed, priorityScore := p.absorb(task.destination, loading)
	total := absorbed.Total()
	if total == 0 {
		return nil, nil
	}

	out := make([]candidate, 0, len(paths))
	for _, path := range paths {

		distance, err := p.oracle.PathDistance(path)
		if err != nil {
			return nil, err
		}
		hours, err := p.oracle.PathTime(path, task.vehicle)
		if err != nil {
			return nil, err
		}

		out = append(out, candidate{
			path:     path,
			distance: distance,
			time:     hours,
			absorbed: absorbed,
			score:    Score(priorityScore, distance, hours, total, len(path)-1),
		})
	}

	return out, nil
}

// absorb считает, сколько из загрузки примет пункт назначения, и
// взвешенную приоритетом сумму
func (p *Planner) absorb(destination int64, loading domain.Loading) (domain.Loading, float64) {
	absorbed := make(domain.Loading)
	var priorityScore float64

	for _, item := range loading.Items() {
		outstanding := p.state.Outstanding(destination, item)
		if outstanding <= 0 {
			continue
		}
		qty := domain.MinInt64(loading[item], outstanding)
		absorbed[item] = qty

		if dm := p.ds.DemandFor(destination, item); dm != nil {
			priorityScore += float64(qty) * float64(dm.Priority)
		}
	}

	return absorbed, priorityScore
}

// Score - взвешенная оценка кандидата. edges - число рёбер пути (>= 1).
func Score(priorityScore, distance, hours float64, absorbed int64, edges int) float64 {
	distanceScore := 1000 / (distance + 1)
	timeScore := 100 / (hours + 1)
	demandScore := 10 * float64(absorbed)
	hopScore := 50 / float64(edges)

	return weightPriority*priorityScore +
		weightDistance*distanceScore +
		weightTime*timeScore +
		weightDemand*demandScore +
		weightHops*hopScore
}
