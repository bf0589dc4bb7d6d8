package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/cheems/transit/internal/database"
	"github.com/cheems/transit/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RouteRepository handles route persistence
type RouteRepository struct {
	db *database.DB
}

// NewRouteRepository creates a new RouteRepository
func NewRouteRepository(db *database.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

const routeSelect = `
	SELECT r.id::text, r.name, r.origin, r.destination, r.scheduled_time, r.vehicle_id::text, v.plate, r.created_at
	FROM routes r
	JOIN vehicles v ON v.id = r.vehicle_id
`

func scanRouteRow(scanner rowScanner) (*models.Route, error) {
	var route models.Route
	var scheduled pgtype.Time

	err := scanner.Scan(
		&route.ID, &route.Name, &route.Origin, &route.Destination,
		&scheduled, &route.VehicleID, &route.VehiclePlate, &route.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	route.ScheduledTime = models.TimeOfDayFromDuration(time.Duration(scheduled.Microseconds) * time.Microsecond)
	return &route, nil
}

func toPgTime(t models.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func (r *RouteRepository) GetByID(ctx context.Context, id string) (*models.Route, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	return scanRouteRow(r.db.Pool.QueryRow(ctx, routeSelect+` WHERE r.id = $1`, id))
}

// List returns routes ordered by schedule. An empty vehicleID lists all routes.
func (r *RouteRepository) List(ctx context.Context, vehicleID string, limit, offset int) ([]*models.Route, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if vehicleID == "" {
		rows, err = r.db.Pool.Query(ctx, routeSelect+` ORDER BY r.scheduled_time, r.name LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		if _, perr := uuid.Parse(vehicleID); perr != nil {
			return []*models.Route{}, nil
		}
		rows, err = r.db.Pool.Query(ctx, routeSelect+` WHERE r.vehicle_id = $1 ORDER BY r.scheduled_time, r.name LIMIT $2 OFFSET $3`, vehicleID, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	routes := make([]*models.Route, 0)
	for rows.Next() {
		route, err := scanRouteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, route)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating route rows: %w", err)
	}

	return routes, nil
}

// Create inserts a route for an existing vehicle. The vehicle row is share-locked
// in the same transaction so it cannot disappear between the check and the insert.
func (r *RouteRepository) Create(ctx context.Context, route *models.Route) (*models.Route, error) {
	if _, err := uuid.Parse(route.VehicleID); err != nil {
		return nil, models.ErrNotFound
	}

	var created *models.Route

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var plate string
		err := tx.QueryRow(ctx, `SELECT plate FROM vehicles WHERE id = $1 FOR SHARE`, route.VehicleID).Scan(&plate)
		if err != nil {
			return database.MapPostgresError(err)
		}

		query := `
			INSERT INTO routes (id, name, origin, destination, scheduled_time, vehicle_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id::text, name, origin, destination, scheduled_time, vehicle_id::text, $8::text, created_at
		`

		created, err = scanRouteRow(tx.QueryRow(ctx, query,
			uuid.New().String(), route.Name, route.Origin, route.Destination,
			toPgTime(route.ScheduledTime), route.VehicleID, time.Now(), plate,
		))
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *RouteRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}

	result, err := r.db.Pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
