package routing

import "slices"

// searchState - частичный путь в очереди поиска
type searchState struct {
	distance float64
	node     int64
	path     []int64
	hops     int
}

// searchQueue implements heap.Interface.
// Order: distance, then node id, then path (lexicographic), then hops.
// The full ordering keeps ties reproducible between runs.
type searchQueue []*searchState

func (q searchQueue) Len() int { return len(q) }

func (q searchQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.distance != b.distance {
		return a.distance < b.distance
	}
	if a.node != b.node {
		return a.node < b.node
	}
	if c := slices.Compare(a.path, b.path); c != 0 {
		return c < 0
	}
	return a.hops < b.hops
}

func (q searchQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *searchQueue) Push(x any) {
	*q = append(*q, x.(*searchState))
}

func (q *searchQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// extend возвращает копию пути с добавленным узлом
func extend(path []int64, next int64) []int64 {
	out := make([]int64, len(path), len(path)+1)
	copy(out, path)
	return append(out, next)
}
