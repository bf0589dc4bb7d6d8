package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cheems/transit/internal/auth"
	"github.com/cheems/transit/internal/models"
	pkgauth "github.com/cheems/transit/pkg/auth"
	pkglogger "github.com/cheems/transit/pkg/logger"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
}

type TokenRevocationRepository interface {
	RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// ErrWeakPassword is returned when a new password fails pkg/auth validation.
var ErrWeakPassword = fmt.Errorf("%w: password does not meet requirements", models.ErrBadRequest)

// PasswordVerifier is the CredentialVerifier backed by the users table.
type PasswordVerifier struct {
	repo UserRepository
	tm   *auth.TokenManager
}

func NewPasswordVerifier(repo UserRepository, tm *auth.TokenManager) *PasswordVerifier {
	return &PasswordVerifier{repo: repo, tm: tm}
}

func (v *PasswordVerifier) Verify(ctx context.Context, email, password string) (*Session, error) {
	user, err := v.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.CompareDummy(password)
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, models.ErrUnauthorized
	}

	tokens, err := v.tm.GenerateTokenPair(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: tokens}, nil
}

// AuthService owns the account and token lifecycle around the login guard
type AuthService struct {
	repo        UserRepository
	revokeRepo  TokenRevocationRepository
	guard       *LoginGuard
	tm          *auth.TokenManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAuthService(repo UserRepository, revokeRepo TokenRevocationRepository, guard *LoginGuard, tm *auth.TokenManager, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		revokeRepo:  revokeRepo,
		guard:       guard,
		tm:          tm,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Login delegates to the login guard. See LoginGuard.AttemptLogin for errors.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*models.TokenPair, error) {
	return s.guard.AttemptLogin(ctx, req)
}

// Register creates a user with the default role and signs them in.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*models.TokenPair, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	if email == "" || name == "" {
		return nil, fmt.Errorf("%w: email and name are required", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, ErrWeakPassword
	}

	hashed, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	user, err := s.repo.Create(ctx, &models.User{
		Email:             email,
		PasswordHash:      hashed,
		Name:              name,
		Role:              models.RoleUser,
		PasswordChangedAt: &now,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	tokens, err := s.tm.GenerateTokenPair(user)
	if err != nil {
		s.logger.Error("failed to issue tokens", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	if s.auditLogger != nil {
		s.auditLogger.LogAccountAction(ctx, pkglogger.EventUserRegistered, user.ID, "", nil)
	}

	return tokens, nil
}

// RefreshToken rotates a refresh token: the presented one is revoked and a
// new pair is issued. Tokens issued before the last password change are
// rejected.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		s.logger.Info("refresh token rejected", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	revoked, err := s.revokeRepo.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("failed to check token revocation", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if revoked {
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load user for refresh", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if issuedBeforePasswordChange(claims, user) {
		s.logger.Info("refresh blocked: token predates password change", slog.String("user_id", user.ID))
		return nil, models.ErrUnauthorized
	}

	if err := s.revokeRepo.RevokeToken(ctx, claims.ID, user.ID, claims.Type, claims.ExpiresAt.Time, "rotated"); err != nil {
		s.logger.Error("failed to revoke rotated refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	tokens, err := s.tm.GenerateTokenPair(user)
	if err != nil {
		s.logger.Error("failed to issue tokens", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return tokens, nil
}

// Logout revokes the caller's access token and, when supplied, the matching
// refresh token.
func (s *AuthService) Logout(ctx context.Context, claims *models.TokenClaims, refreshToken string) error {
	if claims == nil {
		return models.ErrUnauthorized
	}

	if err := s.revokeRepo.RevokeToken(ctx, claims.ID, claims.UserID, claims.Type, claims.ExpiresAt.Time, "logout"); err != nil {
		s.logger.Error("failed to revoke token", slog.String("jti", claims.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if refreshToken != "" {
		refresh, err := s.tm.ValidateToken(refreshToken, models.TokenTypeRefresh)
		if err == nil && refresh.UserID == claims.UserID {
			if err := s.revokeRepo.RevokeToken(ctx, refresh.ID, refresh.UserID, refresh.Type, refresh.ExpiresAt.Time, "logout"); err != nil {
				s.logger.Error("failed to revoke refresh token", slog.String("jti", refresh.ID), slog.Any("error", err))
				return models.ErrInternalServer
			}
		}
	}

	if s.auditLogger != nil {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType: pkglogger.EventLogout,
			UserID:    claims.UserID,
			Success:   true,
		})
	}
	return nil
}

// JWT timestamps have second precision.
func issuedBeforePasswordChange(claims *models.TokenClaims, user *models.User) bool {
	if user.PasswordChangedAt == nil || claims.IssuedAt == nil {
		return false
	}
	return claims.IssuedAt.Time.Before(user.PasswordChangedAt.Truncate(time.Second))
}
