package service

import (
	"errors"
	"fmt"

	"lockerhub/internal/repository"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
	KindAuth
	KindForbidden
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Error is the error type returned across the service boundary. Two errors
// match under errors.Is when their codes are equal, so wrapped instances with
// extra detail still compare equal to the sentinels below.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// With returns a copy of e carrying a more specific message.
func (e *Error) With(format string, args ...any) *Error {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrValidation          = newError(KindValidation, "validation_failed", "invalid input")
	ErrInvalidWindow       = newError(KindValidation, "invalid_window", "reserved_until must be at least the minimum lead time in the future")
	ErrLockerNotAvailable  = newError(KindConflict, "locker_not_available", "locker is not available")
	ErrLockerNumberTaken   = newError(KindConflict, "locker_number_taken", "locker number already exists")
	ErrLockerNotInactive   = newError(KindConflict, "locker_not_inactive", "only inactive lockers can be reactivated")
	ErrAlreadyReleased     = newError(KindConflict, "already_released", "reservation already released")
	ErrUsernameTaken       = newError(KindConflict, "username_taken", "username already registered")
	ErrStorage             = newError(KindConflict, "storage_conflict", "storage operation failed, retry")
	ErrLockerNotFound      = newError(KindNotFound, "locker_not_found", "locker not found")
	ErrReservationNotFound = newError(KindNotFound, "reservation_not_found", "reservation not found")
	ErrInvalidCredentials  = newError(KindAuth, "invalid_credentials", "invalid username or password")
	ErrTokenExpired        = newError(KindAuth, "token_expired", "access token expired")
	ErrTokenMalformed      = newError(KindAuth, "token_malformed", "access token invalid")
	ErrInvalidRefreshToken = newError(KindAuth, "invalid_refresh_token", "refresh token invalid or expired")
	ErrForbidden           = newError(KindForbidden, "forbidden", "operation not permitted for this role")
	ErrNotOwner            = newError(KindForbidden, "not_owner", "reservation belongs to another user")
	ErrPinMismatch         = newError(KindForbidden, "pin_mismatch", "invalid locker number or PIN")
	ErrTooManyAttempts     = newError(KindRateLimited, "too_many_attempts", "too many failed unlock attempts, try again later")
)

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// storageErr wraps an unexpected store failure so it surfaces as a retryable conflict.
func storageErr(op string, err error) error {
	clone := *ErrStorage
	clone.Err = fmt.Errorf("%s: %w", op, err)
	return &clone
}

// storeErr translates repository sentinels into service errors. Anything it
// does not recognise is treated as a storage failure.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrLockerNotFound):
		return ErrLockerNotFound
	case errors.Is(err, repository.ErrReservationNotFound):
		return ErrReservationNotFound
	case errors.Is(err, repository.ErrLockerNotAvailable):
		return ErrLockerNotAvailable
	case errors.Is(err, repository.ErrLockerNumberTaken):
		return ErrLockerNumberTaken
	case errors.Is(err, repository.ErrLockerNotInactive):
		return ErrLockerNotInactive
	case errors.Is(err, repository.ErrAlreadyReleased):
		return ErrAlreadyReleased
	case errors.Is(err, repository.ErrUsernameTaken):
		return ErrUsernameTaken
	default:
		return storageErr(op, err)
	}
}
