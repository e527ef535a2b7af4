package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cvrp/pkg/database"
	"cvrp/pkg/domain"
	"cvrp/pkg/telemetry"
)

const (
	sqliteInsertDelivery = `
		INSERT INTO deliveries (
			run_id, vehicle_id, start_location_id, end_location_id,
			start_time, end_time, total_distance_km, route_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	sqliteInsertDeliveryItem = `INSERT INTO delivery_items (delivery_id, inventory_id, quantity) VALUES (?, ?, ?)`

	sqliteSelectDeliveries = `
		SELECT delivery_id, vehicle_id, start_location_id, end_location_id,
			start_time, end_time, total_distance_km, route_path
		FROM deliveries
		WHERE run_id = ?
		ORDER BY delivery_id
	`

	sqliteSelectDeliveryItems = `
		SELECT di.delivery_id, di.inventory_id, di.quantity
		FROM delivery_items di
		JOIN deliveries d ON d.delivery_id = di.delivery_id
		WHERE d.run_id = ?
		ORDER BY di.delivery_id, di.inventory_id
	`
)

// SQLiteRepository - файловое хранилище для локальных запусков
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository создаёт репозиторий поверх открытой базы
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) LoadDataset(ctx context.Context) (*domain.Dataset, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteRepository.LoadDataset")
	defer span.End()

	var ds *domain.Dataset
	err := database.WithSQLTransaction(ctx, r.db, nil, func(tx *sql.Tx) error {
		var err error
		ds, err = loadDataset(ctx, sqlQuery(tx))
		return err
	})
	if err != nil {
		return nil, storageError(ctx, err, "failed to load dataset")
	}

	return ds, nil
}

// SaveSolution записывает доставки; время хранится строкой RFC 3339 в UTC
func (r *SQLiteRepository) SaveSolution(ctx context.Context, runID uuid.UUID, deliveries []domain.Delivery) error {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteRepository.SaveSolution")
	defer span.End()

	if len(deliveries) == 0 {
		return nil
	}

	err := database.WithSQLTransaction(ctx, r.db, nil, func(tx *sql.Tx) error {
		for i := range deliveries {
			d := &deliveries[i]

			path, err := encodePath(d.Path)
			if err != nil {
				return err
			}

			res, err := tx.ExecContext(ctx, sqliteInsertDelivery,
				runID.String(),
				d.VehicleID,
				d.OriginID,
				d.DestinationID,
				formatTimestamp(d.StartTime),
				formatTimestamp(d.EndTime),
				d.DistanceKm,
				path,
			)
			if err != nil {
				return fmt.Errorf("failed to insert delivery %d: %w", i, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read delivery id: %w", err)
			}

			for _, item := range d.Loading.Items() {
				if _, err := tx.ExecContext(ctx, sqliteInsertDeliveryItem, id, item, d.Loading[item]); err != nil {
					return fmt.Errorf("failed to insert delivery item %d/%d: %w", id, item, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return storageError(ctx, err, "failed to save solution")
	}

	return nil
}

func (r *SQLiteRepository) LoadDeliveries(ctx context.Context, runID uuid.UUID) ([]domain.Delivery, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteRepository.LoadDeliveries")
	defer span.End()

	return loadDeliveries(ctx, sqlQuery(r.db), sqliteSelectDeliveries, sqliteSelectDeliveryItems, runID.String())
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// sqlQuerier - общее у *sql.DB и *sql.Tx
type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func sqlQuery(q sqlQuerier) queryFunc {
	return func(ctx context.Context, query string, args ...any) (rows, func(), error) {
		r, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	}
}
