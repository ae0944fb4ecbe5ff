package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrLockerNotFound      = errors.New("locker not found")
	ErrLockerNumberTaken   = errors.New("locker number already taken")
	ErrLockerNotAvailable  = errors.New("locker not available")
	ErrLockerNotInactive   = errors.New("locker not inactive")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrAlreadyReleased     = errors.New("reservation already released")
	ErrConflict            = errors.New("concurrent update conflict")
)

const (
	constraintUsername     = "users_username_key"
	constraintLockerNumber = "lockers_locker_number_key"
	constraintOneActive    = "reservations_one_active_per_locker"
	constraintLockerFK     = "reservations_locker_id_fkey"
)

// mapPgError translates constraint and transaction failures into repository sentinels.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case constraintUsername:
			return ErrUsernameTaken
		case constraintLockerNumber:
			return ErrLockerNumberTaken
		case constraintOneActive:
			return ErrLockerNotAvailable
		}
		return fmt.Errorf("%w: unique violation on %s", ErrConflict, pgErr.ConstraintName)
	case pgerrcode.ForeignKeyViolation:
		if pgErr.ConstraintName == constraintLockerFK {
			return ErrLockerNotFound
		}
		return fmt.Errorf("foreign key violation on %s: %w", pgErr.ConstraintName, err)
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	default:
		return fmt.Errorf("postgres error [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
	}
}
