package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cheems/transit/internal/models"
)

type VehicleRepository interface {
	GetByID(ctx context.Context, id string) (*models.Vehicle, error)
	GetByPlate(ctx context.Context, plate string) (*models.Vehicle, error)
	List(ctx context.Context, limit, offset int) ([]*models.Vehicle, error)
	ListByPlates(ctx context.Context, plates []string) ([]*models.Vehicle, error)
	Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error)
	Update(ctx context.Context, id string, vehicle *models.Vehicle) (*models.Vehicle, error)
	Delete(ctx context.Context, id string) error
}

type VehicleService struct {
	repo   VehicleRepository
	logger *slog.Logger
}

func NewVehicleService(repo VehicleRepository, logger *slog.Logger) *VehicleService {
	return &VehicleService{repo: repo, logger: logger}
}

// List returns vehicles, restricted to the given plates when any are passed.
func (s *VehicleService) List(ctx context.Context, plates []string, limit, offset int) ([]*models.Vehicle, error) {
	if len(plates) > 0 {
		return s.repo.ListByPlates(ctx, plates)
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *VehicleService) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *VehicleService) Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	if err := validateVehicle(vehicle); err != nil {
		return nil, err
	}
	if err := s.checkPlateFree(ctx, vehicle.Plate, ""); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, vehicle)
	if err != nil {
		return nil, err
	}
	s.logger.Info("vehicle created", slog.String("vehicle_id", created.ID), slog.String("plate", created.Plate))
	return created, nil
}

func (s *VehicleService) Update(ctx context.Context, id string, vehicle *models.Vehicle) (*models.Vehicle, error) {
	if err := validateVehicle(vehicle); err != nil {
		return nil, err
	}
	if err := s.checkPlateFree(ctx, vehicle.Plate, id); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, vehicle)
}

func (s *VehicleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("vehicle deleted", slog.String("vehicle_id", id))
	return nil
}

// checkPlateFree reports a conflict when another vehicle already holds plate.
// The unique index still guards the race between this read and the write.
func (s *VehicleService) checkPlateFree(ctx context.Context, plate, selfID string) error {
	existing, err := s.repo.GetByPlate(ctx, plate)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		return fmt.Errorf("%w: plate %s already registered", models.ErrConflict, plate)
	}
	return nil
}

// Plates are stored as given (trimmed); the importer matches them exactly.
func validateVehicle(v *models.Vehicle) error {
	v.Plate = strings.TrimSpace(v.Plate)
	if v.Plate == "" {
		return fmt.Errorf("%w: plate is required", models.ErrBadRequest)
	}
	if v.Company < 0 {
		return fmt.Errorf("%w: company must not be negative", models.ErrBadRequest)
	}
	return nil
}
