package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/cheems/transit/internal/models"
)

type RouteRepository interface {
	GetByID(ctx context.Context, id string) (*models.Route, error)
	List(ctx context.Context, vehicleID string, limit, offset int) ([]*models.Route, error)
	Create(ctx context.Context, route *models.Route) (*models.Route, error)
	Delete(ctx context.Context, id string) error
}

// CreateRouteInput is a single route as submitted over the API.
type CreateRouteInput struct {
	Name          string
	Origin        string
	Destination   string
	ScheduledTime string
	VehicleID     string
}

type RouteService struct {
	repo   RouteRepository
	logger *slog.Logger
}

func NewRouteService(repo RouteRepository, logger *slog.Logger) *RouteService {
	return &RouteService{repo: repo, logger: logger}
}

func (s *RouteService) List(ctx context.Context, vehicleID string, limit, offset int) ([]*models.Route, error) {
	return s.repo.List(ctx, vehicleID, limit, offset)
}

func (s *RouteService) Get(ctx context.Context, id string) (*models.Route, error) {
	return s.repo.GetByID(ctx, id)
}

// Create applies the same checks as an import row, with the vehicle given by id.
func (s *RouteService) Create(ctx context.Context, in CreateRouteInput) (*models.Route, error) {
	fields := []struct{ name, value string }{
		{"name", in.Name},
		{"origin", in.Origin},
		{"destination", in.Destination},
		{"scheduledTime", in.ScheduledTime},
		{"vehicleId", in.VehicleID},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return nil, fmt.Errorf("%w: field %s required", models.ErrBadRequest, f.name)
		}
	}
	for _, f := range fields[:3] {
		if utf8.RuneCountInString(strings.TrimSpace(f.value)) > models.MaxRouteTextLength {
			return nil, fmt.Errorf("%w: field %s exceeds %d characters", models.ErrBadRequest, f.name, models.MaxRouteTextLength)
		}
	}

	scheduled, err := models.ParseTimeOfDay(in.ScheduledTime)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid time format", models.ErrBadRequest)
	}

	route, err := s.repo.Create(ctx, &models.Route{
		Name:          strings.TrimSpace(in.Name),
		Origin:        strings.TrimSpace(in.Origin),
		Destination:   strings.TrimSpace(in.Destination),
		ScheduledTime: scheduled,
		VehicleID:     strings.TrimSpace(in.VehicleID),
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: vehicle %s does not exist", models.ErrNotFound, in.VehicleID)
		}
		return nil, err
	}

	s.logger.Info("route created", slog.String("route_id", route.ID), slog.String("vehicle_id", route.VehicleID))
	return route, nil
}

func (s *RouteService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
