package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login guard
	ErrAccountLocked = errors.New("account is temporarily locked")

	// Route import
	ErrInvalidFile = errors.New("invalid import file")
	ErrBatchFailed = errors.New("no routes were imported")
)

// InvalidCredentialsError is returned when a login attempt fails verification
// while the account is still open.
type InvalidCredentialsError struct {
	AttemptsRemaining int
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials: %d attempts remaining", e.AttemptsRemaining)
}

func (e *InvalidCredentialsError) Is(target error) bool {
	return target == ErrUnauthorized
}

// AccountLockedError is returned while an account is locked by the login guard.
type AccountLockedError struct {
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked for %d minutes", e.MinutesRemaining())
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// MinutesRemaining rounds the remaining lock time up to whole minutes.
// A lock with any time left reports at least one minute.
func (e *AccountLockedError) MinutesRemaining() int {
	if e.Remaining <= 0 {
		return 0
	}
	minutes := int(e.Remaining / time.Minute)
	if e.Remaining%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// InvalidFileError rejects an import file before any row is processed.
type InvalidFileError struct {
	Reason string
}

func (e *InvalidFileError) Error() string {
	return "invalid file: " + e.Reason
}

func (e *InvalidFileError) Is(target error) bool {
	return target == ErrInvalidFile
}

// BatchFailedError carries the report of an import where no row succeeded.
type BatchFailedError struct {
	Report *ImportReport
}

func (e *BatchFailedError) Error() string {
	if e.Report == nil {
		return ErrBatchFailed.Error()
	}
	return fmt.Sprintf("%s: %d rows failed", ErrBatchFailed.Error(), len(e.Report.Errors))
}

func (e *BatchFailedError) Is(target error) bool {
	return target == ErrBatchFailed
}
