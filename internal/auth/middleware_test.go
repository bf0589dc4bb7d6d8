package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cheems/transit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRevocationChecker struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocationChecker) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.revoked[jti], s.err
}

type stubUserRepo struct {
	users map[string]*models.User
	err   error
}

func (s *stubUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if GetUserFromContext(r) == nil {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/routes", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tm := newTestTokenManager()
	pair, err := tm.GenerateTokenPair(testUser())
	require.NoError(t, err)
	reset, err := tm.GeneratePasswordResetToken(testUser())
	require.NoError(t, err)

	h := AuthMiddleware(tm)(okHandler)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"access token accepted", pair.AccessToken, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"refresh token rejected", pair.RefreshToken, http.StatusUnauthorized},
		{"reset token rejected", reset, http.StatusUnauthorized},
		{"garbage token", "abc", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, tt.token)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAuthMiddleware_MalformedScheme(t *testing.T) {
	h := AuthMiddleware(newTestTokenManager())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/routes", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestAuthMiddlewareWithRevocation(t *testing.T) {
	tm := newTestTokenManager()
	token, err := tm.GenerateAccessToken(testUser())
	require.NoError(t, err)
	claims, err := tm.ValidateToken(token, models.TokenTypeAccess)
	require.NoError(t, err)

	t.Run("revoked token", func(t *testing.T) {
		checker := &stubRevocationChecker{revoked: map[string]bool{claims.ID: true}}
		h := AuthMiddlewareWithRevocation(tm, checker, RevocationConfig{}, nil)(okHandler)
		assert.Equal(t, http.StatusUnauthorized, serve(h, token).Code)
	})

	t.Run("lookup failure fails open", func(t *testing.T) {
		checker := &stubRevocationChecker{err: errors.New("db down")}
		h := AuthMiddlewareWithRevocation(tm, checker, RevocationConfig{FailClosed: false}, nil)(okHandler)
		assert.Equal(t, http.StatusOK, serve(h, token).Code)
	})

	t.Run("lookup failure fails closed", func(t *testing.T) {
		checker := &stubRevocationChecker{err: errors.New("db down")}
		h := AuthMiddlewareWithRevocation(tm, checker, RevocationConfig{FailClosed: true}, nil)(okHandler)
		assert.Equal(t, http.StatusServiceUnavailable, serve(h, token).Code)
	})
}

func TestRequireRole(t *testing.T) {
	tm := newTestTokenManager()
	user := testUser()
	admin := &models.User{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin}

	userToken, err := tm.GenerateAccessToken(user)
	require.NoError(t, err)
	adminToken, err := tm.GenerateAccessToken(admin)
	require.NoError(t, err)

	repo := &stubUserRepo{users: map[string]*models.User{user.ID: user, admin.ID: admin}}
	h := AuthMiddleware(tm)(RequireRole(repo, models.RoleAdmin)(okHandler))

	assert.Equal(t, http.StatusOK, serve(h, adminToken).Code)
	assert.Equal(t, http.StatusForbidden, serve(h, userToken).Code)

	gone := &stubUserRepo{users: map[string]*models.User{}}
	h = AuthMiddleware(tm)(RequireRole(gone, models.RoleAdmin)(okHandler))
	assert.Equal(t, http.StatusUnauthorized, serve(h, adminToken).Code)

	broken := &stubUserRepo{err: errors.New("db down")}
	h = AuthMiddleware(tm)(RequireRole(broken, models.RoleAdmin)(okHandler))
	assert.Equal(t, http.StatusInternalServerError, serve(h, adminToken).Code)
}

func TestRequireRole_WithoutClaims(t *testing.T) {
	h := RequireRole(&stubUserRepo{}, models.RoleAdmin)(okHandler)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
}
