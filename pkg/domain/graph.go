package domain

// RouteGraph - направленный список смежности маршрутной сети.
// Соседи хранятся в порядке добавления рёбер; после построения граф
// только читается и безопасен для параллельного поиска.
type RouteGraph struct {
	edges    map[EdgeKey]*Route
	outgoing map[int64][]int64

	// excluded - ребро, скрытое в представлении Without
	excluded    EdgeKey
	hasExcluded bool
}

// NewRouteGraph создаёт пустой граф
func NewRouteGraph() *RouteGraph {
	return &RouteGraph{
		edges:    make(map[EdgeKey]*Route),
		outgoing: make(map[int64][]int64),
	}
}

// BuildRouteGraph строит граф по рёбрам набора данных.
// Повторное ребро для той же пары перезаписывает расстояние.
func BuildRouteGraph(routes []*Route) *RouteGraph {
	g := NewRouteGraph()
	for _, r := range routes {
		g.AddRoute(r)
	}
	return g
}

// AddRoute добавляет ребро в граф
func (g *RouteGraph) AddRoute(r *Route) {
	key := r.Key()
	if _, exists := g.edges[key]; !exists {
		g.outgoing[r.OriginID] = append(g.outgoing[r.OriginID], r.DestinationID)
	}
	g.edges[key] = r
}

// Edge возвращает ребро между двумя узлами
func (g *RouteGraph) Edge(from, to int64) (*Route, bool) {
	if g.hasExcluded && g.excluded.From == from && g.excluded.To == to {
		return nil, false
	}
	r, ok := g.edges[EdgeKey{From: from, To: to}]
	return r, ok
}

// Neighbors возвращает исходящих соседей узла в порядке добавления.
// В представлении Without скрытое ребро всё ещё присутствует в списке,
// поэтому вызывающий проверяет его через Edge.
func (g *RouteGraph) Neighbors(id int64) []int64 {
	return g.outgoing[id]
}

// Without возвращает представление графа без одного ребра.
// Общие данные не копируются и не изменяются.
func (g *RouteGraph) Without(from, to int64) *RouteGraph {
	return &RouteGraph{
		edges:       g.edges,
		outgoing:    g.outgoing,
		excluded:    EdgeKey{From: from, To: to},
		hasExcluded: true,
	}
}

// EdgeCount возвращает количество рёбер
func (g *RouteGraph) EdgeCount() int {
	n := len(g.edges)
	if g.hasExcluded {
		if _, ok := g.edges[g.excluded]; ok {
			n--
		}
	}
	return n
}
