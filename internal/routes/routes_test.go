package routes

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cheems/transit/internal/auth"
	"github.com/cheems/transit/internal/handlers"
	"github.com/cheems/transit/internal/models"
	"github.com/cheems/transit/internal/services"
	pkghttp "github.com/cheems/transit/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingOK struct{}

func (pingOK) HealthCheck(ctx context.Context) error { return nil }

type testServer struct {
	router  chi.Router
	tm      *auth.TokenManager
	revoked *services.MockTokenRevocationRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm := auth.NewTokenManager("routes-test-secret-32-characters", 15*time.Minute, time.Hour, time.Hour)
	revoked := &services.MockTokenRevocationRepository{}

	users := &services.MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			switch id {
			case "admin-1":
				return &models.User{ID: id, Role: models.RoleAdmin}, nil
			case "user-1":
				return &models.User{ID: id, Role: models.RoleUser}, nil
			}
			return nil, models.ErrNotFound
		},
	}

	ipConfig := pkghttp.NewIPConfig(nil)
	router := chi.NewRouter()
	RegisterRoutes(router, Dependencies{
		AuthHandler:    handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockPasswordResetService{}, ipConfig),
		VehicleHandler: handlers.NewVehicleHandler(&handlers.MockVehicleService{}),
		RouteHandler:   handlers.NewRouteHandler(&handlers.MockRouteService{}, &handlers.MockRouteImporter{}, 1<<20, logger),
		Health:         pingOK{},
		TokenManager:   tm,
		UserRepo:       users,
		RevokeRepo:     revoked,
		IPConfig:       ipConfig,
		Logger:         logger,
	})

	return &testServer{router: router, tm: tm, revoked: revoked}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.tm.GenerateAccessToken(&models.User{ID: userID, Email: userID + "@example.com"})
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T) *http.Request {
	return handlers.NewUploadRequest(t, "/routes/import", handlers.ImportFormField, "rutas.csv",
		[]byte("nombre_ruta,origen,destino,horario,placa_vehiculo\nA,B,C,08:00,ABC123\n"))
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginIsPublic(t *testing.T) {
	s := newTestServer(t)
	req := handlers.NewTestRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "driver@example.com", "password": "nope",
	})
	w := s.do(req, "")

	// Default mock rejects the credentials
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "attemptsRemaining")
}

func TestImportAccessControl(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"regular user", s.token(t, "user-1"), http.StatusForbidden},
		{"admin", s.token(t, "admin-1"), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(uploadRequest(t), tt.token)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestTemplateRequiresAdmin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/routes/import-template", nil), s.token(t, "user-1"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/routes/import-template", nil), s.token(t, "admin-1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
}

func TestReadEndpointsNeedAnyUser(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(httptest.NewRequest(http.MethodGet, "/vehicles", nil), "").Code)
	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/vehicles", nil), s.token(t, "user-1")).Code)
	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/routes?vehicle=v1", nil), s.token(t, "user-1")).Code)
}

func TestRevokedTokenRejected(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "admin-1")

	claims, err := s.tm.ValidateToken(tok, models.TokenTypeAccess)
	require.NoError(t, err)
	require.NoError(t, s.revoked.RevokeToken(context.Background(), claims.ID, "admin-1", models.TokenTypeAccess, time.Now().Add(time.Hour), "logout"))

	w := s.do(httptest.NewRequest(http.MethodGet, "/vehicles", nil), tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
