package models

import "time"

// LoginAttempt is one row of the append-only authentication log.
// Locked and UnlockAt are decided when the row is written and never change.
type LoginAttempt struct {
	ID            string     `db:"id"`
	Email         string     `db:"email"`
	IPAddress     string     `db:"ip_address"`
	UserAgent     string     `db:"user_agent"`
	AttemptTime   time.Time  `db:"attempt_time"`
	Success       bool       `db:"success"`
	Locked        bool       `db:"locked"`
	UnlockAt      *time.Time `db:"unlock_at"`
	FailureReason *string    `db:"failure_reason"`
}

// IsLockActive reports whether this attempt holds a lock that has not expired at now.
func (a *LoginAttempt) IsLockActive(now time.Time) bool {
	return a != nil && a.Locked && a.UnlockAt != nil && a.UnlockAt.After(now)
}

// Failure reasons stored with unsuccessful attempts
const (
	FailureReasonInvalidCredentials = "invalid_credentials"
	FailureReasonUnknownAccount     = "unknown_account"
)
