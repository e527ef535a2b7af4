package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cvrp/pkg/domain"
)

// SolutionCache - кэш результатов распределения поверх Cache
type SolutionCache struct {
	cache      Cache
	defaultTTL time.Duration
}

// CachedSolution - сериализуемый результат запуска
type CachedSolution struct {
	Deliveries   []domain.Delivery  `json:"deliveries"`
	Statistics   *domain.Statistics `json:"statistics"`
	Unfulfilled  []UnfulfilledLine  `json:"unfulfilled,omitempty"`
	PathSearches int64              `json:"path_searches"`
	ComputedAt   time.Time          `json:"computed_at"`
}

// UnfulfilledLine - строка остаточного спроса
type UnfulfilledLine struct {
	LocationID  int64 `json:"location_id"`
	InventoryID int64 `json:"inventory_id"`
	Quantity    int64 `json:"quantity"`
}

// SolveKey - параметры, от которых зависит результат
type SolveKey struct {
	MaxHops     int
	MaxVehicles int
	MaxPaths    int
}

// NewSolutionCache создаёт кэш решений
func NewSolutionCache(cache Cache, defaultTTL time.Duration) *SolutionCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &SolutionCache{cache: cache, defaultTTL: defaultTTL}
}

func (sc *SolutionCache) key(ds *domain.Dataset, k SolveKey) string {
	return BuildSolveKey(DatasetHash(ds), k.MaxHops, k.MaxVehicles, k.MaxPaths)
}

// Get возвращает сохранённое решение; found=false если его нет
func (sc *SolutionCache) Get(ctx context.Context, ds *domain.Dataset, k SolveKey) (*CachedSolution, bool, error) {
	key := sc.key(ds, k)

	data, err := sc.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var result CachedSolution
	if err := json.Unmarshal(data, &result); err != nil {
		// Повреждённая запись
		_ = sc.cache.Delete(ctx, key)
		return nil, false, nil
	}

	return &result, true, nil
}

// Set сохраняет решение
func (sc *SolutionCache) Set(ctx context.Context, ds *domain.Dataset, k SolveKey, result *CachedSolution, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = sc.defaultTTL
	}
	if result.ComputedAt.IsZero() {
		result.ComputedAt = time.Now()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return sc.cache.Set(ctx, sc.key(ds, k), data, ttl)
}

// Invalidate удаляет все решения для набора данных
func (sc *SolutionCache) Invalidate(ctx context.Context, ds *domain.Dataset) (int64, error) {
	return sc.cache.DeleteByPattern(ctx, "solve:"+DatasetHash(ds)+":*")
}

// UnfulfilledLines переводит карту остаточного спроса в упорядоченные строки
func UnfulfilledLines(unfulfilled map[domain.Key]int64) []UnfulfilledLine {
	lines := make([]UnfulfilledLine, 0, len(unfulfilled))
	for _, k := range sortedKeys(unfulfilled) {
		lines = append(lines, UnfulfilledLine{LocationID: k.Location, InventoryID: k.Item, Quantity: unfulfilled[k]})
	}
	return lines
}

// UnfulfilledMap - обратное преобразование
func (r *CachedSolution) UnfulfilledMap() map[domain.Key]int64 {
	m := make(map[domain.Key]int64, len(r.Unfulfilled))
	for _, l := range r.Unfulfilled {
		m[domain.Key{Location: l.LocationID, Item: l.InventoryID}] = l.Quantity
	}
	return m
}
