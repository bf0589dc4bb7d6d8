package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cheems/transit/internal/auth"
	"github.com/cheems/transit/internal/models"
	"github.com/cheems/transit/internal/services"
	pkghttp "github.com/cheems/transit/pkg/http"
	"github.com/go-chi/chi/v5"
)

// ImportFormField is the multipart field carrying the CSV file.
const ImportFormField = "archivo"

const templateFilename = "plantilla_rutas.csv"

type RouteServiceInterface interface {
	List(ctx context.Context, vehicleID string, limit, offset int) ([]*models.Route, error)
	Get(ctx context.Context, id string) (*models.Route, error)
	Create(ctx context.Context, in services.CreateRouteInput) (*models.Route, error)
	Delete(ctx context.Context, id string) error
}

type RouteImporter interface {
	ImportRoutes(ctx context.Context, r io.Reader, actorID string) (*models.ImportReport, error)
	Template() ([]byte, error)
}

type RouteHandler struct {
	service     RouteServiceInterface
	importer    RouteImporter
	maxFileSize int64
	logger      *slog.Logger
}

func NewRouteHandler(service RouteServiceInterface, importer RouteImporter, maxFileSize int64, logger *slog.Logger) *RouteHandler {
	return &RouteHandler{
		service:     service,
		importer:    importer,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

type CreateRouteRequest struct {
	Name          string `json:"name"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	ScheduledTime string `json:"scheduledTime"`
	VehicleID     string `json:"vehicleId"`
}

// ImportResponse is the body of 200 and 207 import responses.
type ImportResponse struct {
	Message       string                 `json:"message"`
	CreatedRoutes []models.ImportedRoute `json:"createdRoutes"`
	Errors        []models.RowError      `json:"errors,omitempty"`
}

// ImportFailureResponse is the body of a 400 import response.
type ImportFailureResponse struct {
	Error  string            `json:"error"`
	Errors []models.RowError `json:"errors,omitempty"`
}

// List handles GET /routes?vehicle=<id>
func (h *RouteHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	routes, err := h.service.List(r.Context(), r.URL.Query().Get("vehicle"), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, routes)
}

func (h *RouteHandler) Get(w http.ResponseWriter, r *http.Request) {
	route, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, route)
}

// Create handles POST /routes. Field checks live in the service so that
// single creation and import rows report the same messages.
func (h *RouteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRouteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	route, err := h.service.Create(r.Context(), services.CreateRouteInput{
		Name:          req.Name,
		Origin:        req.Origin,
		Destination:   req.Destination,
		ScheduledTime: req.ScheduledTime,
		VehicleID:     req.VehicleID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, route)
}

func (h *RouteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import handles POST /routes/import.
//
//	200: every row created
//	207: some rows failed
//	400: bad upload, invalid file, or no row created
func (h *RouteHandler) Import(w http.ResponseWriter, r *http.Request) {
	// Room for the multipart envelope around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+64<<10)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			pkghttp.WritePayloadTooLarge(w, fmt.Sprintf("file exceeds %d bytes", h.maxFileSize))
			return
		}
		pkghttp.WriteBadRequest(w, "request must be multipart/form-data")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(ImportFormField)
	if err != nil {
		pkghttp.WriteBadRequest(w, fmt.Sprintf("no file uploaded in field %q", ImportFormField))
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		pkghttp.WriteBadRequest(w, "file must be a .csv")
		return
	}
	if header.Size > h.maxFileSize {
		pkghttp.WritePayloadTooLarge(w, fmt.Sprintf("file exceeds %d bytes", h.maxFileSize))
		return
	}

	var actorID string
	if claims := auth.GetUserFromContext(r); claims != nil {
		actorID = claims.UserID
	}

	report, err := h.importer.ImportRoutes(r.Context(), file, actorID)
	if err != nil {
		var invalid *models.InvalidFileError
		var failed *models.BatchFailedError
		switch {
		case errors.As(err, &invalid):
			pkghttp.WriteJSON(w, http.StatusBadRequest, ImportFailureResponse{Error: invalid.Error()})
		case errors.As(err, &failed):
			pkghttp.WriteJSON(w, http.StatusBadRequest, ImportFailureResponse{
				Error:  "no routes were imported",
				Errors: failed.Report.Errors,
			})
		default:
			h.logger.Error("route import failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "internal server error")
		}
		return
	}

	if report.Partial() {
		pkghttp.WriteJSON(w, http.StatusMultiStatus, ImportResponse{
			Message:       fmt.Sprintf("imported %d routes, %d rows failed", len(report.Created), len(report.Errors)),
			CreatedRoutes: report.Created,
			Errors:        report.Errors,
		})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ImportResponse{
		Message:       fmt.Sprintf("imported %d routes", len(report.Created)),
		CreatedRoutes: report.Created,
	})
}

// Template handles GET /routes/import-template
func (h *RouteHandler) Template(w http.ResponseWriter, r *http.Request) {
	body, err := h.importer.Template()
	if err != nil {
		h.logger.Error("failed to build import template", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", templateFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
