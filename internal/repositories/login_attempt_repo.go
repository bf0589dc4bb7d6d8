package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cheems/transit/internal/database"
	"github.com/cheems/transit/internal/models"
	"github.com/jackc/pgx/v5"
)

// LoginAttemptStore is the set of login-log operations that can run either on
// the pool or inside an account-locked transaction.
type LoginAttemptStore interface {
	LatestAttempt(ctx context.Context, email string, since time.Time) (*models.LoginAttempt, error)
	CountFailedSince(ctx context.Context, email string, since time.Time) (int, error)
	Create(ctx context.Context, attempt *models.LoginAttempt) error
}

// LoginAttemptRepository handles database operations for the login attempt log.
// Rows are only ever inserted.
type LoginAttemptRepository struct {
	db *database.DB
	q  database.Querier
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db, q: db.Pool}
}

const loginAttemptColumns = `id::text, email, ip_address, user_agent, attempt_time, success, locked, unlock_at, failure_reason`

func scanLoginAttemptRow(scanner rowScanner) (*models.LoginAttempt, error) {
	var attempt models.LoginAttempt
	err := scanner.Scan(
		&attempt.ID, &attempt.Email, &attempt.IPAddress, &attempt.UserAgent,
		&attempt.AttemptTime, &attempt.Success, &attempt.Locked, &attempt.UnlockAt,
		&attempt.FailureReason,
	)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// LatestAttempt returns the most recent attempt for email at or after since,
// or nil when there is none.
func (r *LoginAttemptRepository) LatestAttempt(ctx context.Context, email string, since time.Time) (*models.LoginAttempt, error) {
	query := `
		SELECT ` + loginAttemptColumns + `
		FROM login_attempts
		WHERE email = $1 AND attempt_time >= $2
		ORDER BY attempt_time DESC, id DESC
		LIMIT 1
	`

	attempt, err := scanLoginAttemptRow(r.q.QueryRow(ctx, query, email, since))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest login attempt: %w", err)
	}

	return attempt, nil
}

// CountFailedSince returns the number of failed attempts for email at or after since
func (r *LoginAttemptRepository) CountFailedSince(ctx context.Context, email string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND success = false AND attempt_time >= $2
	`

	var count int
	if err := r.q.QueryRow(ctx, query, email, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count failed login attempts: %w", err)
	}
	return count, nil
}

// Create appends an attempt to the log and fills in its generated ID.
func (r *LoginAttemptRepository) Create(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, ip_address, user_agent, attempt_time, success, locked, unlock_at, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id::text
	`

	err := r.q.QueryRow(ctx, query,
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptTime,
		attempt.Success,
		attempt.Locked,
		attempt.UnlockAt,
		attempt.FailureReason,
	).Scan(&attempt.ID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// WithAccountLock runs fn in a transaction that holds a per-email advisory lock,
// so concurrent count-then-insert sequences for one account are serialized.
func (r *LoginAttemptRepository) WithAccountLock(ctx context.Context, email string, fn func(store LoginAttemptStore) error) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, email); err != nil {
			return fmt.Errorf("failed to acquire account lock: %w", err)
		}
		return fn(&LoginAttemptRepository{db: r.db, q: tx})
	})
}
