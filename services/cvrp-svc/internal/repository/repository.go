package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cvrp/pkg/apperror"
	"cvrp/pkg/domain"
	"cvrp/pkg/logger"
)

// Repository - источник справочных данных и приёмник решений
type Repository interface {
	// LoadDataset читает все таблицы одним согласованным снимком
	LoadDataset(ctx context.Context) (*domain.Dataset, error)
	// SaveSolution записывает доставки запуска вместе с составом груза
	SaveSolution(ctx context.Context, runID uuid.UUID, deliveries []domain.Delivery) error
	// LoadDeliveries читает сохранённые доставки запуска в порядке записи
	LoadDeliveries(ctx context.Context, runID uuid.UUID) ([]domain.Delivery, error)
	Close() error
}

// rows - общее подмножество курсоров pgx и database/sql
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// queryFunc выполняет запрос и возвращает курсор с функцией закрытия
type queryFunc func(ctx context.Context, query string, args ...any) (rows, func(), error)

// table - запрос на чтение одной таблицы и разбор её строки
type table struct {
	name  string
	query string
	scan  func(r rows, ds *domain.Dataset) error
}

// Порядок важен только для читаемости логов: ссылки проверяются после загрузки
var datasetTables = []table{
	{
		name: "locations",
		query: `SELECT location_id, name, type, latitude, longitude,
			COALESCE(refuel_capable, FALSE), warehouse_capacity
			FROM locations ORDER BY location_id`,
		scan: scanLocation,
	},
	{
		name: "vehicles",
		query: `SELECT vehicle_id, name, capacity, range_km, speed_kmh,
			refuel_time_hours, loading_time_hours, unloading_time_hours
			FROM vehicles ORDER BY vehicle_id`,
		scan: scanVehicle,
	},
	{
		name:  "inventory_types",
		query: `SELECT inventory_id, name, description, volume_per_unit, weight_per_unit FROM inventory_types ORDER BY inventory_id`,
		scan:  scanInventoryType,
	},
	{
		name:  "inventory",
		query: `SELECT location_id, inventory_id, quantity FROM inventory ORDER BY location_id, inventory_id`,
		scan:  scanInventory,
	},
	{
		name: "demand",
		query: `SELECT location_id, inventory_id, quantity, COALESCE(priority, 1), due_date
			FROM demand ORDER BY location_id, inventory_id`,
		scan: scanDemand,
	},
	{
		name: "routes",
		query: `SELECT route_id, origin_id, destination_id, distance_km,
			estimated_time_hours, restricted_vehicle_types
			FROM routes ORDER BY route_id`,
		scan: scanRoute,
	},
	{
		name:  "vehicle_locations",
		query: `SELECT location_id, vehicle_type_id, quantity FROM vehicle_locations ORDER BY location_id, vehicle_type_id`,
		scan:  scanFleet,
	},
}

// storageError оборачивает ошибку драйвера, не трогая уже размеченные.
// Отмена или истёкший срок ctx дают CANCELED, а не STORAGE.
func storageError(ctx context.Context, err error, message string) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if apperror.Is(err, apperror.CodeCanceled) {
			return err
		}
		return apperror.Wrap(err, apperror.CodeCanceled, message)
	}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Wrap(err, apperror.CodeStorage, message)
}

// loadDataset читает все таблицы через q и проверяет целостность результата
func loadDataset(ctx context.Context, q queryFunc) (*domain.Dataset, error) {
	ds := domain.NewDataset()

	for _, t := range datasetTables {
		if err := loadTable(ctx, q, t, ds); err != nil {
			return nil, storageError(ctx, err, fmt.Sprintf("failed to load %s", t.name))
		}
	}

	ve := ds.Check()
	if !ve.IsValid() {
		return nil, ve.Err()
	}
	for _, w := range ve.WarningMessages() {
		logger.Log.Warn("Dataset warning", "warning", w)
	}
	return ds, nil
}

func loadTable(ctx context.Context, q queryFunc, t table, ds *domain.Dataset) error {
	r, closeRows, err := q(ctx, t.query)
	if err != nil {
		return err
	}
	defer closeRows()

	for r.Next() {
		if err := t.scan(r, ds); err != nil {
			return err
		}
	}
	return r.Err()
}

func scanLocation(r rows, ds *domain.Dataset) error {
	var (
		l    domain.Location
		kind string
	)
	if err := r.Scan(&l.ID, &l.Name, &kind, &l.Latitude, &l.Longitude, &l.RefuelCapable, &l.WarehouseCapacity); err != nil {
		return err
	}
	l.Kind = domain.ParseLocationKind(kind)
	ds.AddLocation(&l)
	return nil
}

func scanVehicle(r rows, ds *domain.Dataset) error {
	var (
		v                          domain.Vehicle
		refuel, loading, unloading *float64
	)
	if err := r.Scan(&v.ID, &v.Name, &v.Capacity, &v.RangeKm, &v.SpeedKmh,
		&refuel, &loading, &unloading); err != nil {
		return err
	}
	v.RefuelTime = hoursOr(refuel, domain.DefaultRefuelTime)
	v.LoadingTime = hoursOr(loading, domain.DefaultLoadingTime)
	v.UnloadingTime = hoursOr(unloading, domain.DefaultUnloadingTime)
	ds.AddVehicle(&v)
	return nil
}

// hoursOr подставляет значение по умолчанию для NULL
func hoursOr(h *float64, def float64) float64 {
	if h == nil {
		return def
	}
	return *h
}

func scanInventoryType(r rows, ds *domain.Dataset) error {
	var (
		it          domain.InventoryType
		description *string
		weight      *float64
	)
	if err := r.Scan(&it.ID, &it.Name, &description, &it.VolumePerUnit, &weight); err != nil {
		return err
	}
	if description != nil {
		it.Description = *description
	}
	if weight != nil {
		it.WeightPerUnit = *weight
	}
	ds.AddInventoryType(&it)
	return nil
}

func scanInventory(r rows, ds *domain.Dataset) error {
	var loc, item, qty int64
	if err := r.Scan(&loc, &item, &qty); err != nil {
		return err
	}
	ds.SetInventory(loc, item, qty)
	return nil
}

func scanDemand(r rows, ds *domain.Dataset) error {
	var (
		dm  domain.Demand
		due any
	)
	if err := r.Scan(&dm.LocationID, &dm.InventoryID, &dm.Quantity, &dm.Priority, &due); err != nil {
		return err
	}
	dueDate, err := parseTime(due)
	if err != nil {
		return fmt.Errorf("demand %d/%d: %w", dm.LocationID, dm.InventoryID, err)
	}
	dm.DueDate = dueDate
	ds.AddDemand(&dm)
	return nil
}

func scanRoute(r rows, ds *domain.Dataset) error {
	var (
		rt         domain.Route
		restricted *string
	)
	if err := r.Scan(&rt.ID, &rt.OriginID, &rt.DestinationID, &rt.DistanceKm,
		&rt.EstimatedTimeHours, &restricted); err != nil {
		return err
	}
	if restricted != nil {
		ids, err := domain.ParseVehicleList(*restricted)
		if err != nil {
			return fmt.Errorf("route %d: %w", rt.ID, err)
		}
		rt.RestrictedVehicles = ids
	}
	ds.AddRoute(&rt)
	return nil
}

func scanFleet(r rows, ds *domain.Dataset) error {
	var loc, vehicle, count int64
	if err := r.Scan(&loc, &vehicle, &count); err != nil {
		return err
	}
	ds.SetFleet(loc, vehicle, count)
	return nil
}

// parseTime приводит значение столбца времени: PostgreSQL отдаёт time.Time,
// SQLite - строку ISO 8601
func parseTime(v any) (*time.Time, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &tv, nil
	case []byte:
		return parseTimestamp(string(tv))
	case string:
		return parseTimestamp(tv)
	default:
		return nil, fmt.Errorf("unsupported time value type %T", v)
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func parseTimestamp(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", s)
}

// loadDeliveries собирает доставки запуска из двух запросов: заголовки
// и строки груза. runArg - id запуска в представлении драйвера.
func loadDeliveries(ctx context.Context, q queryFunc, deliveriesQuery, itemsQuery string, runArg any) ([]domain.Delivery, error) {
	var (
		deliveries []domain.Delivery
		index      = make(map[int64]int)
	)

	err := queryEach(ctx, q, deliveriesQuery, runArg, func(r rows) error {
		var (
			id         int64
			d          domain.Delivery
			start, end any
			path       string
		)
		if err := r.Scan(&id, &d.VehicleID, &d.OriginID, &d.DestinationID, &start, &end, &d.DistanceKm, &path); err != nil {
			return err
		}

		startTime, err := parseTime(start)
		if err != nil {
			return fmt.Errorf("delivery %d: %w", id, err)
		}
		endTime, err := parseTime(end)
		if err != nil {
			return fmt.Errorf("delivery %d: %w", id, err)
		}
		if startTime != nil && endTime != nil {
			d.StartTime, d.EndTime = *startTime, *endTime
			d.TimeHours = endTime.Sub(*startTime).Hours()
		}

		if d.Path, err = decodePath(path); err != nil {
			return fmt.Errorf("delivery %d: %w", id, err)
		}
		d.Loading = make(domain.Loading)

		index[id] = len(deliveries)
		deliveries = append(deliveries, d)
		return nil
	})
	if err != nil {
		return nil, storageError(ctx, err, "failed to load deliveries")
	}

	err = queryEach(ctx, q, itemsQuery, runArg, func(r rows) error {
		var id, item, qty int64
		if err := r.Scan(&id, &item, &qty); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			deliveries[i].Loading[item] = qty
		}
		return nil
	})
	if err != nil {
		return nil, storageError(ctx, err, "failed to load delivery items")
	}

	return deliveries, nil
}

func queryEach(ctx context.Context, q queryFunc, query string, arg any, fn func(r rows) error) error {
	r, closeRows, err := q(ctx, query, arg)
	if err != nil {
		return err
	}
	defer closeRows()

	for r.Next() {
		if err := fn(r); err != nil {
			return err
		}
	}
	return r.Err()
}

// encodePath сериализует путь в JSON-массив id
func encodePath(path []int64) (string, error) {
	if path == nil {
		path = []int64{}
	}
	b, err := json.Marshal(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodePath - обратная операция к encodePath
func decodePath(s string) ([]int64, error) {
	var path []int64
	if err := json.Unmarshal([]byte(s), &path); err != nil {
		return nil, fmt.Errorf("invalid route path %q: %w", s, err)
	}
	return path, nil
}
