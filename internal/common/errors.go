package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Caller-visible unlock/upload outcomes. Nothing finer grained crosses
	// the service boundary.
	ErrDenied       = errors.New("denied")
	ErrLocked       = errors.New("locked")
	ErrTryAgain     = errors.New("try again")
	ErrInvalidInput = errors.New("invalid input")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// LockedError reports a rate-limited unlock. RetryAfter is already coarse
// (whole minutes) and is the only detail a caller learns about the lockout.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	if e.RetryAfter <= 0 {
		return ErrLocked.Error()
	}
	return fmt.Sprintf("%s, retry after %s", ErrLocked, e.RetryAfter)
}

// Unwrap lets errors.Is(err, ErrLocked) match.
func (e *LockedError) Unwrap() error { return ErrLocked }
