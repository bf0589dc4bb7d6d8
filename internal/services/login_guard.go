package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cheems/transit/internal/models"
	"github.com/cheems/transit/internal/repositories"
	pkglogger "github.com/cheems/transit/pkg/logger"
)

// LoginAttemptRepository is the append-only attempt log plus the per-account
// serialization point used when a failure is counted.
type LoginAttemptRepository interface {
	repositories.LoginAttemptStore
	WithAccountLock(ctx context.Context, email string, fn func(store repositories.LoginAttemptStore) error) error
}

// CredentialVerifier checks an email and password and, on success, opens a
// session. It returns models.ErrNotFound for unknown accounts and
// models.ErrUnauthorized for a wrong password.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*Session, error)
}

// Session is the result of a successful credential check.
type Session struct {
	User   *models.User
	Tokens *models.TokenPair
}

type LoginGuardConfig struct {
	MaxFailedAttempts int
	Window            time.Duration
	LockoutDuration   time.Duration
}

func DefaultLoginGuardConfig() LoginGuardConfig {
	return LoginGuardConfig{
		MaxFailedAttempts: 5,
		Window:            30 * time.Minute,
		LockoutDuration:   30 * time.Minute,
	}
}

// LoginRequest is one authentication attempt as seen by the guard.
type LoginRequest struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginGuard throttles authentication per account. Lock state is derived
// from the attempt log on every call; nothing else is stored.
type LoginGuard struct {
	repo        LoginAttemptRepository
	verifier    CredentialVerifier
	notifier    Notifier
	config      LoginGuardConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewLoginGuard(repo LoginAttemptRepository, verifier CredentialVerifier, notifier Notifier, config LoginGuardConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *LoginGuard {
	return &LoginGuard{
		repo:        repo,
		verifier:    verifier,
		notifier:    notifier,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// lockLookback is how far back a lock row can still be active. A lock
// outlives the counting window when the duration is the longer of the two.
func (g *LoginGuard) lockLookback() time.Duration {
	return max(g.config.Window, g.config.LockoutDuration)
}

// AttemptLogin runs one login attempt through the guard.
//
// Errors: *models.AccountLockedError while the account is locked or when this
// attempt locks it, *models.InvalidCredentialsError for a rejected attempt
// that leaves the account open, models.ErrBadRequest for an empty email, and
// models.ErrInternalServer when the attempt log or identity store fails.
func (g *LoginGuard) AttemptLogin(ctx context.Context, req LoginRequest) (*models.TokenPair, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrBadRequest)
	}
	req.Email = email

	now := g.now()

	latest, err := g.repo.LatestAttempt(ctx, email, now.Add(-g.lockLookback()))
	if err != nil {
		g.logger.Error("failed to read login attempts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if latest.IsLockActive(now) {
		g.audit(ctx, pkglogger.EventLoginBlocked, req, "", false, "account_locked")
		return nil, &models.AccountLockedError{Remaining: latest.UnlockAt.Sub(now)}
	}

	session, err := g.verifier.Verify(ctx, email, req.Password)
	switch {
	case err == nil:
		return g.recordSuccess(ctx, req, session, now)
	case errors.Is(err, models.ErrNotFound):
		return nil, g.recordFailure(ctx, req, models.FailureReasonUnknownAccount, false)
	case errors.Is(err, models.ErrUnauthorized):
		return nil, g.recordFailure(ctx, req, models.FailureReasonInvalidCredentials, true)
	default:
		g.logger.Error("credential verification failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
}

func (g *LoginGuard) recordSuccess(ctx context.Context, req LoginRequest, session *Session, now time.Time) (*models.TokenPair, error) {
	attempt := &models.LoginAttempt{
		Email:       req.Email,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		AttemptTime: now,
		Success:     true,
	}
	if err := g.repo.Create(ctx, attempt); err != nil {
		g.logger.Error("failed to record login attempt", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	g.audit(ctx, pkglogger.EventLoginSuccess, req, session.User.ID, true, "")
	return session.Tokens, nil
}

// recordFailure counts prior failures and writes this attempt inside one
// account-locked transaction, so concurrent failures see distinct counts.
func (g *LoginGuard) recordFailure(ctx context.Context, req LoginRequest, reason string, accountExists bool) error {
	var (
		result      error
		newlyLocked bool
	)

	err := g.repo.WithAccountLock(ctx, req.Email, func(store repositories.LoginAttemptStore) error {
		now := g.now()
		since := now.Add(-g.config.Window)

		// A concurrent attempt may have locked the account after our first read.
		latest, err := store.LatestAttempt(ctx, req.Email, now.Add(-g.lockLookback()))
		if err != nil {
			return err
		}
		if latest.IsLockActive(now) {
			result = &models.AccountLockedError{Remaining: latest.UnlockAt.Sub(now)}
			return nil
		}

		prior, err := store.CountFailedSince(ctx, req.Email, since)
		if err != nil {
			return err
		}
		failures := prior + 1

		attempt := &models.LoginAttempt{
			Email:         req.Email,
			IPAddress:     req.IPAddress,
			UserAgent:     req.UserAgent,
			AttemptTime:   now,
			Success:       false,
			FailureReason: &reason,
		}

		if failures >= g.config.MaxFailedAttempts {
			unlockAt := now.Add(g.config.LockoutDuration)
			attempt.Locked = true
			attempt.UnlockAt = &unlockAt
			newlyLocked = true
			result = &models.AccountLockedError{Remaining: g.config.LockoutDuration}
		} else {
			result = &models.InvalidCredentialsError{AttemptsRemaining: g.config.MaxFailedAttempts - failures}
		}

		return store.Create(ctx, attempt)
	})
	if err != nil {
		g.logger.Error("failed to record failed login attempt", slog.Any("error", err))
		return models.ErrInternalServer
	}

	var locked *models.AccountLockedError
	switch {
	case newlyLocked:
		g.audit(ctx, pkglogger.EventAccountLocked, req, "", false, reason)
		if accountExists && errors.As(result, &locked) {
			g.sendLockoutNotice(ctx, req.Email, locked)
		}
	case errors.As(result, &locked):
		g.audit(ctx, pkglogger.EventLoginBlocked, req, "", false, "account_locked")
	default:
		g.audit(ctx, pkglogger.EventLoginFailed, req, "", false, reason)
	}
	return result
}

// sendLockoutNotice is best effort: delivery failures are logged only.
func (g *LoginGuard) sendLockoutNotice(ctx context.Context, email string, locked *models.AccountLockedError) {
	if g.notifier == nil {
		return
	}

	msg := Message{
		Subject: "Your account has been temporarily locked",
		Body: fmt.Sprintf(
			"We blocked sign-in to your account after %d failed attempts.\n"+
				"You can try again in %d minutes. If this wasn't you, reset your password.",
			g.config.MaxFailedAttempts, locked.MinutesRemaining()),
	}
	if err := g.notifier.Notify(ctx, email, msg); err != nil {
		g.logger.Warn("failed to send lockout notice",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
	}
}

func (g *LoginGuard) audit(ctx context.Context, eventType string, req LoginRequest, userID string, success bool, reason string) {
	if g.auditLogger == nil {
		return
	}
	event := pkglogger.AuditEvent{
		EventType:     eventType,
		UserID:        userID,
		Email:         req.Email,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		Success:       success,
		FailureReason: reason,
	}
	if eventType == pkglogger.EventAccountLocked {
		event.Metadata = map[string]string{
			"lockout_minutes": strconv.Itoa(int(g.config.LockoutDuration / time.Minute)),
		}
	}
	g.auditLogger.LogAuthAttempt(ctx, event)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
