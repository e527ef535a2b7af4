package routing

import (
	"container/heap"
	"context"
	"slices"
	"sort"
	"sync/atomic"

	"cvrp/pkg/apperror"
	"cvrp/pkg/domain"
	"cvrp/services/cvrp-svc/internal/graph"
)

// =============================================================================
// Range-constrained path search
// =============================================================================
//
// FindPath is a Dijkstra-style search on cumulative distance with two twists:
//
//   - the visited set is keyed by (location, hops), so a location may be
//     expanded again when reached with a different hop count;
//   - every leg must fit into the vehicle range, and only refuel-capable
//     locations may serve as intermediate stops.
//
// Once hops reaches maxHops the only legal continuation is a direct edge to
// the destination, so a returned path has at most maxHops+1 edges.
//
// FindAllPaths approximates k-shortest paths by removing one edge of the
// previously found path at a time and searching again.
// =============================================================================

const checkInterval = 100

// Finder ищет маршруты по графу. Безопасен для параллельного использования.
type Finder struct {
	graph  *domain.RouteGraph
	ds     *domain.Dataset
	oracle *graph.Oracle

	searches atomic.Int64
}

// NewFinder создаёт поисковик маршрутов
func NewFinder(ds *domain.Dataset, g *domain.RouteGraph, oracle *graph.Oracle) *Finder {
	return &Finder{graph: g, ds: ds, oracle: oracle}
}

// Option - параметр поиска
type Option func(*searchOptions)

type searchOptions struct {
	vehicleID  int64
	hasVehicle bool
}

// ForVehicle исключает рёбра, запрещённые для типа ТС
func ForVehicle(vehicleID int64) Option {
	return func(o *searchOptions) {
		o.vehicleID = vehicleID
		o.hasVehicle = true
	}
}

// Searches возвращает число выполненных поисков FindPath
func (f *Finder) Searches() int64 {
	return f.searches.Load()
}

// FindPath возвращает кратчайший допустимый путь от origin до destination.
// Если пути нет, возвращает nil без ошибки.
func (f *Finder) FindPath(ctx context.Context, origin, destination int64, maxRange float64, maxHops int, opts ...Option) ([]int64, error) {
	return f.search(ctx, f.graph, origin, destination, maxRange, maxHops, buildOptions(opts))
}

// FindAllPaths возвращает до maxPaths различных путей, отсортированных по
// длине (расстояния пересчитываются оракулом).
func (f *Finder) FindAllPaths(ctx context.Context, origin, destination int64, maxRange float64, maxHops, maxPaths int, opts ...Option) ([][]int64, error) {
	first, err := f.FindPath(ctx, origin, destination, maxRange, maxHops, opts...)
	if err != nil || first == nil {
		return nil, err
	}

	so := buildOptions(opts)

	paths := [][]int64{first}

	for len(paths) < maxPaths {
		prev := paths[len(paths)-1]
		found := false

		for i := 0; i < len(prev)-1; i++ {
			view := f.graph.Without(prev[i], prev[i+1])

			alt, err := f.search(ctx, view, origin, destination, maxRange, maxHops, so)
			if err != nil {
				return nil, err
			}
			if alt != nil && !containsPath(paths, alt) {
				paths = append(paths, alt)
				found = true
				break
			}
		}

		if !found {
			break
		}
	}

	return f.sortByDistance(paths)
}

func (f *Finder) sortByDistance(paths [][]int64) ([][]int64, error) {
	type ranked struct {
		path []int64
		dist float64
	}

	items := make([]ranked, len(paths))
	for i, p := range paths {
		d, err := f.oracle.PathDistance(p)
		if err != nil {
			return nil, err
		}
		items[i] = ranked{path: p, dist: d}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].dist < items[j].dist
	})

	out := make([][]int64, len(items))
	for i := range items {
		out[i] = items[i].path
	}
	return out, nil
}

func (f *Finder) search(ctx context.Context, g *domain.RouteGraph, origin, destination int64, maxRange float64, maxHops int, so searchOptions) ([]int64, error) {
	f.searches.Add(1)

	type visitKey struct {
		node int64
		hops int
	}
	visited := make(map[visitKey]struct{})

	pq := &searchQueue{{distance: 0, node: origin, path: []int64{origin}, hops: 0}}

	iterations := 0
	for pq.Len() > 0 {
		if iterations%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, apperror.Wrap(err, apperror.CodeCanceled, "path search interrupted")
			}
		}
		iterations++

		cur := heap.Pop(pq).(*searchState)

		if cur.node == destination {
			return cur.path, nil
		}

		key := visitKey{node: cur.node, hops: cur.hops}
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}

		// Бюджет пересадок исчерпан - только прямое ребро до цели
		if cur.hops >= maxHops {
			if r, ok := f.usableEdge(g, cur.node, destination, so); ok && r.DistanceKm <= maxRange {
				heap.Push(pq, &searchState{
					distance: cur.distance + r.DistanceKm,
					node:     destination,
					path:     extend(cur.path, destination),
					hops:     cur.hops + 1,
				})
			}
			continue
		}

		for _, next := range g.Neighbors(cur.node) {
			if slices.Contains(cur.path, next) {
				continue
			}

			r, ok := f.usableEdge(g, cur.node, next, so)
			if !ok || r.DistanceKm > maxRange {
				continue
			}

			if next != destination {
				loc, err := f.ds.Location(next)
				if err != nil {
					return nil, err
				}
				if !loc.RefuelCapable {
					continue
				}
			}

			heap.Push(pq, &searchState{
				distance: cur.distance + r.DistanceKm,
				node:     next,
				path:     extend(cur.path, next),
				hops:     cur.hops + 1,
			})
		}
	}

	return nil, nil
}

func (f *Finder) usableEdge(g *domain.RouteGraph, from, to int64, so searchOptions) (*domain.Route, bool) {
	r, ok := g.Edge(from, to)
	if !ok {
		return nil, false
	}
	if so.hasVehicle && !r.AllowsVehicle(so.vehicleID) {
		return nil, false
	}
	return r, true
}

func buildOptions(opts []Option) searchOptions {
	var so searchOptions
	for _, opt := range opts {
		opt(&so)
	}
	return so
}

func containsPath(paths [][]int64, p []int64) bool {
	for _, existing := range paths {
		if slices.Equal(existing, p) {
			return true
		}
	}
	return false
}
