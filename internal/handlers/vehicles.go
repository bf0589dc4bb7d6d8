package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cheems/transit/internal/models"
	pkghttp "github.com/cheems/transit/pkg/http"
	"github.com/go-chi/chi/v5"
)

type VehicleServiceInterface interface {
	List(ctx context.Context, plates []string, limit, offset int) ([]*models.Vehicle, error)
	Get(ctx context.Context, id string) (*models.Vehicle, error)
	Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error)
	Update(ctx context.Context, id string, vehicle *models.Vehicle) (*models.Vehicle, error)
	Delete(ctx context.Context, id string) error
}

type VehicleHandler struct {
	service VehicleServiceInterface
}

func NewVehicleHandler(service VehicleServiceInterface) *VehicleHandler {
	return &VehicleHandler{service: service}
}

type VehicleRequest struct {
	Plate     string `json:"plate" validate:"required,max=20"`
	Company   int    `json:"company" validate:"gte=0"`
	Available *bool  `json:"available"`
}

func (req VehicleRequest) toModel() *models.Vehicle {
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	return &models.Vehicle{
		Plate:     req.Plate,
		Company:   req.Company,
		Available: available,
	}
}

// List handles GET /vehicles?plates=A,B
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	var plates []string
	if raw := r.URL.Query().Get("plates"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				plates = append(plates, p)
			}
		}
	}

	limit, offset := parsePagination(r)
	vehicles, err := h.service.List(r.Context(), plates, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, vehicles)
}

func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, vehicle)
}

func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req VehicleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	vehicle, err := h.service.Create(r.Context(), req.toModel())
	if err != nil {
		writeVehicleError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, vehicle)
}

func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req VehicleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	vehicle, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req.toModel())
	if err != nil {
		writeVehicleError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, vehicle)
}

func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeVehicleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeVehicleError(w http.ResponseWriter, err error) {
	if isConflict(err) {
		pkghttp.WriteConflict(w, "a vehicle with that plate already exists")
		return
	}
	writeServiceError(w, err)
}
