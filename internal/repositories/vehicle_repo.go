package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/cheems/transit/internal/database"
	"github.com/cheems/transit/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// VehicleRepository handles vehicle persistence
type VehicleRepository struct {
	pool *pgxpool.Pool
}

// NewVehicleRepository creates a new VehicleRepository
func NewVehicleRepository(db *database.DB) *VehicleRepository {
	return &VehicleRepository{pool: db.Pool}
}

const vehicleColumns = `id::text, plate, company, available, created_at, updated_at`

func scanVehicleRow(scanner rowScanner) (*models.Vehicle, error) {
	var v models.Vehicle
	err := scanner.Scan(&v.ID, &v.Plate, &v.Company, &v.Available, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &v, nil
}

func scanVehicleRows(rows pgx.Rows) ([]*models.Vehicle, error) {
	defer rows.Close()

	vehicles := make([]*models.Vehicle, 0)
	for rows.Next() {
		v, err := scanVehicleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vehicle rows: %w", err)
	}

	return vehicles, nil
}

func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*models.Vehicle, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1`
	return scanVehicleRow(r.pool.QueryRow(ctx, query, id))
}

// GetByPlate resolves a vehicle by exact plate match
func (r *VehicleRepository) GetByPlate(ctx context.Context, plate string) (*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE plate = $1`
	return scanVehicleRow(r.pool.QueryRow(ctx, query, plate))
}

func (r *VehicleRepository) List(ctx context.Context, limit, offset int) ([]*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles ORDER BY plate LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}

	return scanVehicleRows(rows)
}

// ListByPlates returns the vehicles whose plate is one of plates
func (r *VehicleRepository) ListByPlates(ctx context.Context, plates []string) ([]*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE plate = ANY($1) ORDER BY plate`

	rows, err := r.pool.Query(ctx, query, pq.Array(plates))
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles by plate: %w", err)
	}

	return scanVehicleRows(rows)
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	now := time.Now()
	query := `
		INSERT INTO vehicles (id, plate, company, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING ` + vehicleColumns

	return scanVehicleRow(r.pool.QueryRow(ctx, query,
		uuid.New().String(), vehicle.Plate, vehicle.Company, vehicle.Available, now,
	))
}

func (r *VehicleRepository) Update(ctx context.Context, id string, vehicle *models.Vehicle) (*models.Vehicle, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `
		UPDATE vehicles SET plate = $1, company = $2, available = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + vehicleColumns

	return scanVehicleRow(r.pool.QueryRow(ctx, query,
		vehicle.Plate, vehicle.Company, vehicle.Available, time.Now(), id,
	))
}

func (r *VehicleRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
