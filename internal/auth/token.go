package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/cheems/transit/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "transit-api"

var ErrWrongTokenType = errors.New("unexpected token type")

// TokenManager issues and verifies the HS256 tokens used by the API.
type TokenManager struct {
	secret              []byte
	accessTokenExpiry   time.Duration
	refreshTokenExpiry  time.Duration
	passwordResetExpiry time.Duration
	now                 func() time.Time
}

func NewTokenManager(secret string, accessExpiry, refreshExpiry, resetExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:              []byte(secret),
		accessTokenExpiry:   accessExpiry,
		refreshTokenExpiry:  refreshExpiry,
		passwordResetExpiry: resetExpiry,
		now:                 time.Now,
	}
}

func (tm *TokenManager) GenerateAccessToken(user *models.User) (string, error) {
	return tm.sign(models.TokenTypeAccess, user, tm.accessTokenExpiry)
}

func (tm *TokenManager) GenerateRefreshToken(user *models.User) (string, error) {
	return tm.sign(models.TokenTypeRefresh, user, tm.refreshTokenExpiry)
}

// GeneratePasswordResetToken is single-purpose: it is rejected by the auth
// middleware and by refresh.
func (tm *TokenManager) GeneratePasswordResetToken(user *models.User) (string, error) {
	return tm.sign(models.TokenTypePasswordReset, user, tm.passwordResetExpiry)
}

// GenerateTokenPair issues the access and refresh tokens returned on login.
func (tm *TokenManager) GenerateTokenPair(user *models.User) (*models.TokenPair, error) {
	access, err := tm.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := tm.GenerateRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (tm *TokenManager) sign(tokenType string, user *models.User, ttl time.Duration) (string, error) {
	now := tm.now()
	claims := &models.TokenClaims{
		Type:   tokenType,
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ValidateToken verifies signature, expiry and issuer, and that the token
// carries the expected type.
func (tm *TokenManager) ValidateToken(tokenString, expectedType string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != expectedType {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenType, claims.Type, expectedType)
	}
	if claims.ID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token: missing jti or user id")
	}

	return claims, nil
}
