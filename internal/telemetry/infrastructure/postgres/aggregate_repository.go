package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	telemetry "gridwatch/internal/telemetry/domain"
)

const defaultAggregateTable = "hourly_consumption"

// AggregateRepository persists completed window aggregates and serves the
// consumption query API. Expected schema:
//
//	CREATE TABLE hourly_consumption (
//	    id BIGSERIAL PRIMARY KEY,
//	    device_id UUID NOT NULL,
//	    window_start TIMESTAMPTZ NOT NULL,
//	    total_consumption DOUBLE PRECISION NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type AggregateRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*AggregateRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *AggregateRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewAggregateRepository constructs a repository over the given handle.
func NewAggregateRepository(db *sql.DB, opts ...RepositoryOption) (*AggregateRepository, error) {
	if db == nil {
		return nil, errors.New("postgres: nil db")
	}
	repo := &AggregateRepository{db: db, table: defaultAggregateTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

// Persist stores one completed window aggregate.
func (r *AggregateRepository) Persist(ctx context.Context, aggregate telemetry.HourlyAggregate) error {
	query := fmt.Sprintf(`
INSERT INTO %s (device_id, window_start, total_consumption)
VALUES ($1, $2, $3)`, r.table)

	windowStart := time.UnixMilli(aggregate.WindowStart).UTC()
	if _, err := r.db.ExecContext(ctx, query, aggregate.DeviceID, windowStart, aggregate.TotalConsumption); err != nil {
		return fmt.Errorf("postgres: insert aggregate for %s: %w", aggregate.DeviceID, err)
	}
	return nil
}

// ListByDevice returns persisted aggregates for a device within
// [from, to] (logical epoch millis, inclusive), oldest first.
func (r *AggregateRepository) ListByDevice(ctx context.Context, deviceID uuid.UUID, from, to int64) ([]telemetry.HourlyAggregate, error) {
	if deviceID == uuid.Nil {
		return nil, errors.New("postgres: nil device id")
	}

	query := fmt.Sprintf(`
SELECT device_id, window_start, total_consumption
FROM %s
WHERE device_id = $1 AND window_start >= $2 AND window_start <= $3
ORDER BY window_start ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query,
		deviceID, time.UnixMilli(from).UTC(), time.UnixMilli(to).UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: list aggregates for %s: %w", deviceID, err)
	}
	defer rows.Close()

	var aggregates []telemetry.HourlyAggregate
	for rows.Next() {
		var (
			id          uuid.UUID
			windowStart time.Time
			total       float64
		)
		if err := rows.Scan(&id, &windowStart, &total); err != nil {
			return nil, fmt.Errorf("postgres: scan aggregate: %w", err)
		}
		aggregates = append(aggregates, telemetry.HourlyAggregate{
			DeviceID:         id,
			WindowStart:      windowStart.UnixMilli(),
			TotalConsumption: total,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate aggregates: %w", err)
	}
	return aggregates, nil
}
