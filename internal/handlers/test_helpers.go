package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cheems/transit/internal/auth"
	"github.com/cheems/transit/internal/models"
	"github.com/cheems/transit/internal/services"
	pkghttp "github.com/cheems/transit/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewUploadRequest builds a multipart request carrying one file in field.
func NewUploadRequest(t *testing.T, url, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// WithAuthContext adds access token claims to the request context
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Type:   models.TokenTypeAccess,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithURLParam sets a chi route parameter as the router would.
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks the status and the human readable message
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedMessage string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedMessage, resp.Error, "Error message mismatch")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc        func(ctx context.Context, req services.LoginRequest) (*models.TokenPair, error)
	RegisterFunc     func(ctx context.Context, email, password, name string) (*models.TokenPair, error)
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	LogoutFunc       func(ctx context.Context, claims *models.TokenClaims, refreshToken string) error
}

func (m *MockAuthService) Login(ctx context.Context, req services.LoginRequest) (*models.TokenPair, error) {
	if m.LoginFunc == nil {
		return nil, &models.InvalidCredentialsError{}
	}
	return m.LoginFunc(ctx, req)
}

func (m *MockAuthService) Register(ctx context.Context, email, password, name string) (*models.TokenPair, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, email, password, name)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if m.RefreshTokenFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshTokenFunc(ctx, refreshToken)
}

func (m *MockAuthService) Logout(ctx context.Context, claims *models.TokenClaims, refreshToken string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, claims, refreshToken)
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	RequestResetFunc func(ctx context.Context, email, ipAddress string) error
	ConfirmResetFunc func(ctx context.Context, token, newPassword, ipAddress string) error
}

func (m *MockPasswordResetService) RequestReset(ctx context.Context, email, ipAddress string) error {
	if m.RequestResetFunc == nil {
		return nil
	}
	return m.RequestResetFunc(ctx, email, ipAddress)
}

func (m *MockPasswordResetService) ConfirmReset(ctx context.Context, token, newPassword, ipAddress string) error {
	if m.ConfirmResetFunc == nil {
		return nil
	}
	return m.ConfirmResetFunc(ctx, token, newPassword, ipAddress)
}

// MockVehicleService implements VehicleServiceInterface for testing
type MockVehicleService struct {
	ListFunc   func(ctx context.Context, plates []string, limit, offset int) ([]*models.Vehicle, error)
	GetFunc    func(ctx context.Context, id string) (*models.Vehicle, error)
	CreateFunc func(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error)
	UpdateFunc func(ctx context.Context, id string, vehicle *models.Vehicle) (*models.Vehicle, error)
	DeleteFunc func(ctx context.Context, id string) error
}

func (m *MockVehicleService) List(ctx context.Context, plates []string, limit, offset int) ([]*models.Vehicle, error) {
	if m.ListFunc == nil {
		return []*models.Vehicle{}, nil
	}
	return m.ListFunc(ctx, plates, limit, offset)
}

func (m *MockVehicleService) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, id)
}

func (m *MockVehicleService) Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	if m.CreateFunc == nil {
		vehicle.ID = "vehicle-1"
		return vehicle, nil
	}
	return m.CreateFunc(ctx, vehicle)
}

func (m *MockVehicleService) Update(ctx context.Context, id string, vehicle *models.Vehicle) (*models.Vehicle, error) {
	if m.UpdateFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateFunc(ctx, id, vehicle)
}

func (m *MockVehicleService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

// MockRouteService implements RouteServiceInterface for testing
type MockRouteService struct {
	ListFunc   func(ctx context.Context, vehicleID string, limit, offset int) ([]*models.Route, error)
	GetFunc    func(ctx context.Context, id string) (*models.Route, error)
	CreateFunc func(ctx context.Context, in services.CreateRouteInput) (*models.Route, error)
	DeleteFunc func(ctx context.Context, id string) error
}

func (m *MockRouteService) List(ctx context.Context, vehicleID string, limit, offset int) ([]*models.Route, error) {
	if m.ListFunc == nil {
		return []*models.Route{}, nil
	}
	return m.ListFunc(ctx, vehicleID, limit, offset)
}

func (m *MockRouteService) Get(ctx context.Context, id string) (*models.Route, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, id)
}

func (m *MockRouteService) Create(ctx context.Context, in services.CreateRouteInput) (*models.Route, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CreateFunc(ctx, in)
}

func (m *MockRouteService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

// MockRouteImporter implements RouteImporter for testing. Received holds
// the bytes of the last uploaded file.
type MockRouteImporter struct {
	ImportRoutesFunc func(ctx context.Context, body []byte, actorID string) (*models.ImportReport, error)
	TemplateFunc     func() ([]byte, error)

	Received []byte
}

func (m *MockRouteImporter) ImportRoutes(ctx context.Context, r io.Reader, actorID string) (*models.ImportReport, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.Received = body
	if m.ImportRoutesFunc == nil {
		return &models.ImportReport{Created: []models.ImportedRoute{}, Errors: []models.RowError{}}, nil
	}
	return m.ImportRoutesFunc(ctx, body, actorID)
}

func (m *MockRouteImporter) Template() ([]byte, error) {
	if m.TemplateFunc == nil {
		return []byte("nombre_ruta,origen,destino,horario,placa_vehiculo\n"), nil
	}
	return m.TemplateFunc()
}
