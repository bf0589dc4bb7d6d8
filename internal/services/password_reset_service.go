package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cheems/transit/internal/auth"
	"github.com/cheems/transit/internal/models"
	pkgauth "github.com/cheems/transit/pkg/auth"
	pkglogger "github.com/cheems/transit/pkg/logger"
)

var ErrInvalidResetToken = fmt.Errorf("%w: invalid or expired reset token", models.ErrBadRequest)

// PasswordResetService mails single-use reset links and applies new passwords.
type PasswordResetService struct {
	repo        UserRepository
	revokeRepo  TokenRevocationRepository
	tm          *auth.TokenManager
	notifier    Notifier
	resetURL    string
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewPasswordResetService(repo UserRepository, revokeRepo TokenRevocationRepository, tm *auth.TokenManager, notifier Notifier, resetURLBase string, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *PasswordResetService {
	return &PasswordResetService{
		repo:        repo,
		revokeRepo:  revokeRepo,
		tm:          tm,
		notifier:    notifier,
		resetURL:    resetURLBase,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// RequestReset sends a reset link when the account exists. The caller
// always gets the same answer so addresses cannot be probed.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, ipAddress string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	s.audit(ctx, pkglogger.EventPasswordResetRequest, "", email, ipAddress, true, "")

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		}
		return nil
	}

	token, err := s.tm.GeneratePasswordResetToken(user)
	if err != nil {
		s.logger.Error("failed to issue reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}

	link := s.resetURL + "/reset-password?token=" + url.QueryEscape(token)
	msg := Message{
		Subject: "Reset your password",
		Body: "Someone asked to reset the password for this account.\n\n" +
			"Open this link within the next hour to choose a new one:\n" + link + "\n\n" +
			"If it wasn't you, you can ignore this message.",
	}
	if err := s.notifier.Notify(ctx, user.Email, msg); err != nil {
		s.logger.Warn("failed to send password reset",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}
	return nil
}

// ConfirmReset applies newPassword for the user named by a reset token and
// burns the token.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, token, newPassword, ipAddress string) error {
	claims, err := s.tm.ValidateToken(token, models.TokenTypePasswordReset)
	if err != nil {
		return ErrInvalidResetToken
	}

	revoked, err := s.revokeRepo.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("failed to check reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if revoked {
		return ErrInvalidResetToken
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrInvalidResetToken
		}
		s.logger.Error("failed to load user for reset", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if issuedBeforePasswordChange(claims, user) {
		return ErrInvalidResetToken
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return ErrWeakPassword
	}
	hashed, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.revokeRepo.RevokeToken(ctx, claims.ID, user.ID, claims.Type, claims.ExpiresAt.Time, "password_reset_used"); err != nil {
		s.logger.Error("failed to burn reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, hashed, s.now()); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit(ctx, pkglogger.EventPasswordResetConfirm, user.ID, user.Email, ipAddress, true, "")
	return nil
}

func (s *PasswordResetService) audit(ctx context.Context, eventType, userID, email, ip string, success bool, reason string) {
	if s.auditLogger == nil {
		return
	}
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     eventType,
		UserID:        userID,
		Email:         email,
		IPAddress:     ip,
		Success:       success,
		FailureReason: reason,
	})
}
