package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cvrp/pkg/database"
	"cvrp/pkg/domain"
	"cvrp/pkg/telemetry"
)

const (
	pgInsertDelivery = `
		INSERT INTO deliveries (
			run_id, vehicle_id, start_location_id, end_location_id,
			start_time, end_time, total_distance_km, route_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING delivery_id
	`

	pgInsertDeliveryItem = `INSERT INTO delivery_items (delivery_id, inventory_id, quantity) VALUES ($1, $2, $3)`

	pgSelectDeliveries = `
		SELECT delivery_id, vehicle_id, start_location_id, end_location_id,
			start_time, end_time, total_distance_km, route_path
		FROM deliveries
		WHERE run_id = $1
		ORDER BY delivery_id
	`

	pgSelectDeliveryItems = `
		SELECT di.delivery_id, di.inventory_id, di.quantity
		FROM delivery_items di
		JOIN deliveries d ON d.delivery_id = di.delivery_id
		WHERE d.run_id = $1
		ORDER BY di.delivery_id, di.inventory_id
	`
)

// PostgresRepository PostgreSQL реализация
type PostgresRepository struct {
	db database.DB
}

// NewPostgresRepository создаёт новый репозиторий
func NewPostgresRepository(db database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LoadDataset читает таблицы в одной транзакции только для чтения
func (r *PostgresRepository) LoadDataset(ctx context.Context) (*domain.Dataset, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRepository.LoadDataset")
	defer span.End()

	var ds *domain.Dataset
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

	err := database.WithTransactionOptions(ctx, r.db, opts, func(tx pgx.Tx) error {
		var err error
		ds, err = loadDataset(ctx, pgxQuery(tx))
		return err
	})
	if err != nil {
		return nil, storageError(ctx, err, "failed to load dataset")
	}

	return ds, nil
}

// SaveSolution записывает доставки и их груз в одной транзакции
func (r *PostgresRepository) SaveSolution(ctx context.Context, runID uuid.UUID, deliveries []domain.Delivery) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRepository.SaveSolution")
	defer span.End()

	if len(deliveries) == 0 {
		return nil
	}

	err := database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		for i := range deliveries {
			d := &deliveries[i]

			path, err := encodePath(d.Path)
			if err != nil {
				return err
			}

			var id int64
			err = tx.QueryRow(ctx, pgInsertDelivery,
				runID,
				d.VehicleID,
				d.OriginID,
				d.DestinationID,
				d.StartTime,
				d.EndTime,
				d.DistanceKm,
				path,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("failed to insert delivery %d: %w", i, err)
			}

			for _, item := range d.Loading.Items() {
				if _, err := tx.Exec(ctx, pgInsertDeliveryItem, id, item, d.Loading[item]); err != nil {
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

func (r *PostgresRepository) LoadDeliveries(ctx context.Context, runID uuid.UUID) ([]domain.Delivery, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRepository.LoadDeliveries")
	defer span.End()

	return loadDeliveries(ctx, pgxQuery(r.db), pgSelectDeliveries, pgSelectDeliveryItems, runID)
}

// Close закрывает пул соединений
func (r *PostgresRepository) Close() error {
	r.db.Close()
	return nil
}

// pgxQuerier - общее у пула и транзакции pgx
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func pgxQuery(q pgxQuerier) queryFunc {
	return func(ctx context.Context, query string, args ...any) (rows, func(), error) {
		r, err := q.Query(ctx, query, args...)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}
}
