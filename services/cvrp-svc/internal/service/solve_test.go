package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvrp/pkg/apperror"
	"cvrp/pkg/cache"
	"cvrp/pkg/config"
	"cvrp/pkg/domain"
	"cvrp/pkg/metrics"
)

// fakeRepository хранит набор данных в памяти и запоминает сохранения
type fakeRepository struct {
	mu      sync.Mutex
	ds      *domain.Dataset
	loadErr error
	saveErr error
	loads   int
	saved   map[uuid.UUID][]domain.Delivery
	// lost - сколько доставок «теряется» при чтении обратно
	lost int
}

func newFakeRepository(ds *domain.Dataset) *fakeRepository {
	return &fakeRepository{ds: ds, saved: make(map[uuid.UUID][]domain.Delivery)}
}

func (r *fakeRepository) LoadDataset(context.Context) (*domain.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.ds, nil
}

func (r *fakeRepository) SaveSolution(_ context.Context, runID uuid.UUID, deliveries []domain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved[runID] = deliveries
	return nil
}

func (r *fakeRepository) LoadDeliveries(_ context.Context, runID uuid.UUID) ([]domain.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.saved[runID]
	return stored[:max(len(stored)-r.lost, 0)], nil
}

func (r *fakeRepository) Close() error { return nil }

var fixedStart = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// склад 1 с 1000 единиц, пункт 2 со спросом 500, ТС вместимостью 200
func testDataset(vehicles int64) *domain.Dataset {
	ds := domain.NewDataset()
	ds.AddLocation(&domain.Location{ID: 1, Name: "Склад", Kind: domain.KindWarehouse, Latitude: 55.75, Longitude: 37.61}).
		AddLocation(&domain.Location{ID: 2, Name: "Магазин", Kind: domain.KindDestination, Latitude: 55.0, Longitude: 37.0}).
		AddVehicle(&domain.Vehicle{ID: 1, Name: "Фургон", Capacity: 200, RangeKm: 500, SpeedKmh: 50}).
		AddInventoryType(&domain.InventoryType{ID: 1, Name: "Коробка", VolumePerUnit: 1}).
		AddRoute(&domain.Route{ID: 1, OriginID: 1, DestinationID: 2, DistanceKm: 100}).
		SetInventory(1, 1, 1000).
		AddDemand(&domain.Demand{LocationID: 2, InventoryID: 1, Quantity: 500, Priority: 1}).
		SetFleet(1, 1, vehicles)
	return ds
}

func newTestService(t *testing.T, repo *fakeRepository, opts ...Option) (*SolveService, *metrics.Metrics) {
	t.Helper()
	m := metrics.InitMetrics("test", "svc")
	opts = append([]Option{WithMetrics(m), WithClock(func() time.Time { return fixedStart })}, opts...)
	return NewSolveService(repo, config.SolverConfig{MaxPaths: 3, Workers: 2}, opts...), m
}

func TestSolveService_Run(t *testing.T) {
	repo := newFakeRepository(testDataset(2))
	svc, m := newTestService(t, repo)

	res, err := svc.Run(context.Background(), Request{MaxHops: 2, Save: true})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.RunID)
	assert.False(t, res.CacheHit)
	assert.True(t, res.Saved)
	require.Len(t, res.Deliveries, 2)
	assert.InDelta(t, 0.8, res.Statistics.FulfillmentRate, 1e-9)
	assert.Equal(t, map[domain.Key]int64{{Location: 2, Item: 1}: 100}, res.Unfulfilled)
	assert.Same(t, repo.ds, res.Dataset)
	assert.Equal(t, fixedStart, res.Deliveries[0].StartTime)

	assert.Equal(t, res.Deliveries, repo.saved[res.RunID])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SolveRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Deliveries))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DatasetSize.WithLabelValues("routes"))+
		testutil.ToFloat64(m.DatasetSize.WithLabelValues("locations"))+
		testutil.ToFloat64(m.DatasetSize.WithLabelValues("demand"))+
		testutil.ToFloat64(m.DatasetSize.WithLabelValues("vehicles")))
}

func TestSolveService_Run_NoSave(t *testing.T) {
	repo := newFakeRepository(testDataset(1))
	svc, _ := newTestService(t, repo)

	res, err := svc.Run(context.Background(), Request{MaxHops: 2})
	require.NoError(t, err)

	assert.False(t, res.Saved)
	assert.Len(t, res.Deliveries, 1)
	assert.Empty(t, repo.saved)
}

func TestSolveService_Run_NothingToSave(t *testing.T) {
	repo := newFakeRepository(testDataset(0))
	svc, _ := newTestService(t, repo)

	res, err := svc.Run(context.Background(), Request{MaxHops: 2, Save: true})
	require.NoError(t, err)

	assert.Empty(t, res.Deliveries)
	assert.False(t, res.Saved)
	assert.Empty(t, repo.saved)
}

func TestSolveService_Run_Cache(t *testing.T) {
	mc := cache.NewMemoryCache(cache.DefaultOptions())
	t.Cleanup(func() { _ = mc.Close() })

	repo := newFakeRepository(testDataset(2))
	svc, m := newTestService(t, repo, WithCache(cache.NewSolutionCache(mc, time.Hour)))
	ctx := context.Background()

	first, err := svc.Run(ctx, Request{MaxHops: 2})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := svc.Run(ctx, Request{MaxHops: 2})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.NotEqual(t, first.RunID, second.RunID)

	require.Len(t, second.Deliveries, len(first.Deliveries))
	for i := range first.Deliveries {
		assert.Equal(t, first.Deliveries[i].Path, second.Deliveries[i].Path)
		assert.Equal(t, first.Deliveries[i].Loading, second.Deliveries[i].Loading)
	}
	assert.Equal(t, first.Statistics, second.Statistics)
	assert.Equal(t, first.Unfulfilled, second.Unfulfilled)
	assert.Equal(t, first.PathSearches, second.PathSearches)

	// Другие параметры - другой ключ
	third, err := svc.Run(ctx, Request{MaxHops: 2, MaxVehicles: 1})
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Len(t, third.Deliveries, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("miss")))
}

func TestSolveService_Run_InvalidRequest(t *testing.T) {
	repo := newFakeRepository(testDataset(1))
	svc, m := newTestService(t, repo)

	for _, req := range []Request{{MaxHops: -1}, {MaxHops: 2, MaxVehicles: -1}} {
		_, err := svc.Run(context.Background(), req)
		require.Error(t, err)
		assert.True(t, apperror.Is(err, apperror.CodeInvalidArgument))
	}

	assert.Zero(t, repo.loads)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SolveRunsTotal.WithLabelValues("error")))
}

func TestSolveService_Run_LoadError(t *testing.T) {
	repo := newFakeRepository(nil)
	repo.loadErr = apperror.Wrap(errors.New("connection refused"), apperror.CodeStorage, "failed to load dataset")
	svc, m := newTestService(t, repo)

	_, err := svc.Run(context.Background(), Request{MaxHops: 2})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeStorage))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SolveRunsTotal.WithLabelValues("error")))
}

func TestSolveService_Run_SaveError(t *testing.T) {
	repo := newFakeRepository(testDataset(1))
	repo.saveErr = apperror.New(apperror.CodeStorage, "disk full")
	svc, _ := newTestService(t, repo)

	_, err := svc.Run(context.Background(), Request{MaxHops: 2, Save: true})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeStorage))
}

func TestSolveService_Run_SaveReadBackMismatch(t *testing.T) {
	repo := newFakeRepository(testDataset(2))
	repo.lost = 1
	svc, _ := newTestService(t, repo)

	_, err := svc.Run(context.Background(), Request{MaxHops: 2, Save: true})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeStorage))
	assert.Contains(t, err.Error(), "saved 2 deliveries, read back 1")
}

func TestSolveService_Run_Refresh(t *testing.T) {
	mc := cache.NewMemoryCache(cache.DefaultOptions())
	t.Cleanup(func() { _ = mc.Close() })

	repo := newFakeRepository(testDataset(2))
	svc, m := newTestService(t, repo, WithCache(cache.NewSolutionCache(mc, time.Hour)))
	ctx := context.Background()

	_, err := svc.Run(ctx, Request{MaxHops: 2})
	require.NoError(t, err)

	refreshed, err := svc.Run(ctx, Request{MaxHops: 2, Refresh: true})
	require.NoError(t, err)
	assert.False(t, refreshed.CacheHit)
	assert.Len(t, refreshed.Deliveries, 2)

	// Пересчитанное решение снова попадает в кэш
	again, err := svc.Run(ctx, Request{MaxHops: 2})
	require.NoError(t, err)
	assert.True(t, again.CacheHit)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("miss")))
}

func TestSolveService_Run_Canceled(t *testing.T) {
	repo := newFakeRepository(testDataset(1))
	svc, _ := newTestService(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, Request{MaxHops: 2})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeCanceled))
}

func TestNewSolveService_Defaults(t *testing.T) {
	svc := NewSolveService(newFakeRepository(nil), config.SolverConfig{})

	assert.Equal(t, domain.DefaultMaxPaths, svc.cfg.MaxPaths)
	assert.Equal(t, 1, svc.cfg.Workers)
	assert.NotNil(t, svc.metrics)
	assert.Nil(t, svc.cache)
}
