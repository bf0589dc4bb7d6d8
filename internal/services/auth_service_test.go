package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cheems/transit/internal/models"
	pkgauth "github.com/cheems/transit/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(t *testing.T, repo *MockUserRepository, revokeRepo *MockTokenRevocationRepository) *AuthService {
	t.Helper()
	tm := newTestTokenManager()
	logger := discardLogger()
	guard := NewLoginGuard(&MemoryLoginAttemptRepository{}, NewPasswordVerifier(repo, tm), &RecordingNotifier{}, DefaultLoginGuardConfig(), logger, nil)
	return NewAuthService(repo, revokeRepo, guard, tm, logger, nil)
}

func TestPasswordVerifier(t *testing.T) {
	v := NewPasswordVerifier(knownUserRepo(t), newTestTokenManager())
	ctx := context.Background()

	session, err := v.Verify(ctx, knownEmail, knownPassword)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.User.ID)
	assert.NotEmpty(t, session.Tokens.AccessToken)

	_, err = v.Verify(ctx, knownEmail, "nope")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = v.Verify(ctx, "ghost@example.com", "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPasswordVerifier_StoreError(t *testing.T) {
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, errors.New("timeout")
		},
	}
	_, err := NewPasswordVerifier(repo, newTestTokenManager()).Verify(context.Background(), knownEmail, knownPassword)
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrNotFound))
	assert.False(t, errors.Is(err, models.ErrUnauthorized))
}

func TestAuthService_Login(t *testing.T) {
	svc := newTestAuthService(t, knownUserRepo(t), &MockTokenRevocationRepository{})

	tokens, err := svc.Login(context.Background(), LoginRequest{Email: knownEmail, Password: knownPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestAuthService_Register(t *testing.T) {
	var created *models.User
	repo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = "new-user"
			created = user
			return user, nil
		},
	}
	svc := newTestAuthService(t, repo, &MockTokenRevocationRepository{})

	tokens, err := svc.Register(context.Background(), " New@Example.com ", "SecureP@ss123", " Ana ")
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)

	require.NotNil(t, created)
	assert.Equal(t, "new@example.com", created.Email)
	assert.Equal(t, "Ana", created.Name)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.NoError(t, pkgauth.ComparePassword(created.PasswordHash, "SecureP@ss123"))
}

func TestAuthService_Register_Errors(t *testing.T) {
	conflictRepo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}
	svc := newTestAuthService(t, conflictRepo, &MockTokenRevocationRepository{})
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@example.com", "SecureP@ss123", "A")
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = svc.Register(ctx, "a@example.com", "weak", "A")
	assert.ErrorIs(t, err, ErrWeakPassword)
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = svc.Register(ctx, "", "SecureP@ss123", "A")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAuthService_RefreshToken_Rotates(t *testing.T) {
	revokeRepo := &MockTokenRevocationRepository{}
	svc := newTestAuthService(t, knownUserRepo(t), revokeRepo)
	ctx := context.Background()

	tokens, err := svc.Login(ctx, LoginRequest{Email: knownEmail, Password: knownPassword})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken)

	// The old refresh token is single-use.
	_, err = svc.RefreshToken(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_RefreshToken_Rejections(t *testing.T) {
	repo := knownUserRepo(t)
	svc := newTestAuthService(t, repo, &MockTokenRevocationRepository{})
	ctx := context.Background()

	tokens, err := svc.Login(ctx, LoginRequest{Email: knownEmail, Password: knownPassword})
	require.NoError(t, err)

	_, err = svc.RefreshToken(ctx, "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = svc.RefreshToken(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	// Password changed after the token was issued.
	user, _ := repo.GetByEmail(ctx, knownEmail)
	changed := time.Now().Add(time.Hour)
	user.PasswordChangedAt = &changed

	_, err = svc.RefreshToken(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_Logout(t *testing.T) {
	revokeRepo := &MockTokenRevocationRepository{}
	svc := newTestAuthService(t, knownUserRepo(t), revokeRepo)
	ctx := context.Background()

	tokens, err := svc.Login(ctx, LoginRequest{Email: knownEmail, Password: knownPassword})
	require.NoError(t, err)

	claims, err := svc.tm.ValidateToken(tokens.AccessToken, models.TokenTypeAccess)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims, tokens.RefreshToken))

	revoked, _ := revokeRepo.IsTokenRevoked(ctx, claims.ID)
	assert.True(t, revoked)

	_, err = svc.RefreshToken(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	assert.ErrorIs(t, svc.Logout(ctx, nil, ""), models.ErrUnauthorized)
}

func TestAuthService_Logout_StoreFailure(t *testing.T) {
	revokeRepo := &MockTokenRevocationRepository{
		RevokeTokenFunc: func(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error {
			return errors.New("db down")
		},
	}
	svc := newTestAuthService(t, knownUserRepo(t), revokeRepo)

	tokens, err := svc.Login(context.Background(), LoginRequest{Email: knownEmail, Password: knownPassword})
	require.NoError(t, err)
	claims, err := svc.tm.ValidateToken(tokens.AccessToken, models.TokenTypeAccess)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Logout(context.Background(), claims, ""), models.ErrInternalServer)
}
