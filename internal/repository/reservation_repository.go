package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lockerhub/internal/models"
)

type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

const reservationColumns = `id, locker_id, user_id, access_pin, reserved_until, is_active, created_at, released_at`

// Create flips the locker from available to reserved and inserts the active
// reservation in the same transaction. The conditional UPDATE is the
// compare-and-set: a concurrent loser re-evaluates the predicate after the
// winner commits and matches no row.
func (r *ReservationRepository) Create(ctx context.Context, reservation models.Reservation) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		const claimQuery = `
			UPDATE lockers
			SET status = 'reserved', updated_at = $2
			WHERE id = $1 AND status = 'available'
		`
		cmd, err := tx.Exec(ctx, claimQuery, reservation.LockerID, reservation.CreatedAt)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lockers WHERE id = $1)`, reservation.LockerID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrLockerNotFound
			}
			return ErrLockerNotAvailable
		}

		const insertQuery = `
			INSERT INTO reservations (
				id, locker_id, user_id, access_pin, reserved_until, is_active, created_at
			) VALUES (
				$1, $2, $3, $4, $5, TRUE, $6
			)
		`
		_, err = tx.Exec(ctx, insertQuery,
			reservation.ID,
			reservation.LockerID,
			reservation.UserID,
			reservation.AccessPIN,
			reservation.ReservedUntil,
			reservation.CreatedAt,
		)
		return err
	})
	return mapPgError(err)
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (models.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return scanReservation(r.pool.QueryRow(ctx, query, id))
}

func (r *ReservationRepository) GetActiveByLocker(ctx context.Context, lockerID string) (models.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE locker_id = $1 AND is_active`
	return scanReservation(r.pool.QueryRow(ctx, query, lockerID))
}

func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.LockerID != "" {
		args = append(args, filter.LockerID)
		where = append(where, fmt.Sprintf("locker_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// Release deactivates one reservation and frees its locker, but only while the
// locker is still in the reserved state.
func (r *ReservationRepository) Release(ctx context.Context, id string, now time.Time) (models.Reservation, error) {
	var released models.Reservation

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var lockerID string
		if err := tx.QueryRow(ctx, `SELECT locker_id FROM reservations WHERE id = $1`, id).Scan(&lockerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrReservationNotFound
			}
			return err
		}
		if _, err := lockLocker(ctx, tx, lockerID); err != nil {
			return err
		}

		const releaseQuery = `
			UPDATE reservations
			SET is_active = FALSE, released_at = $2
			WHERE id = $1 AND is_active
			RETURNING ` + reservationColumns

		var err error
		released, err = scanReservation(tx.QueryRow(ctx, releaseQuery, id, now))
		if errors.Is(err, ErrReservationNotFound) {
			return ErrAlreadyReleased
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE lockers
			SET status = 'available', updated_at = $2
			WHERE id = $1 AND status = 'reserved'
		`, lockerID, now)
		return err
	})
	if err != nil {
		return models.Reservation{}, mapPgError(err)
	}
	return released, nil
}

func (r *ReservationRepository) UpdateWindow(ctx context.Context, id string, until time.Time) (models.Reservation, error) {
	const query = `
		UPDATE reservations
		SET reserved_until = $2
		WHERE id = $1
		RETURNING ` + reservationColumns

	reservation, err := scanReservation(r.pool.QueryRow(ctx, query, id, until))
	if err != nil {
		return models.Reservation{}, mapPgError(err)
	}
	return reservation, nil
}

// ExpireDue releases every active reservation whose window ended at or before
// now. Locker rows are locked in id order before touching reservations, the
// same order Create, Release and Deactivate use. Running it concurrently is
// safe: the is_active predicate is rechecked under the lock.
func (r *ReservationRepository) ExpireDue(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	var expired []models.Reservation

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT DISTINCT locker_id FROM reservations
			WHERE is_active AND reserved_until <= $1
			ORDER BY locker_id
		`, now)
		if err != nil {
			return err
		}
		lockerIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		if len(lockerIDs) == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			SELECT id FROM lockers WHERE id = ANY($1) ORDER BY id FOR UPDATE
		`, lockerIDs); err != nil {
			return err
		}

		const expireQuery = `
			UPDATE reservations
			SET is_active = FALSE, released_at = $1
			WHERE is_active AND reserved_until <= $1 AND locker_id = ANY($2)
			RETURNING ` + reservationColumns

		rows, err = tx.Query(ctx, expireQuery, now, lockerIDs)
		if err != nil {
			return err
		}
		expired, err = collectReservations(rows)
		if err != nil {
			return err
		}

		freed := make([]string, 0, len(expired))
		for _, reservation := range expired {
			freed = append(freed, reservation.LockerID)
		}
		_, err = tx.Exec(ctx, `
			UPDATE lockers
			SET status = 'available', updated_at = $2
			WHERE id = ANY($1) AND status = 'reserved'
		`, freed, now)
		return err
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return expired, nil
}

func scanReservation(row pgx.Row) (models.Reservation, error) {
	var reservation models.Reservation
	if err := row.Scan(
		&reservation.ID,
		&reservation.LockerID,
		&reservation.UserID,
		&reservation.AccessPIN,
		&reservation.ReservedUntil,
		&reservation.IsActive,
		&reservation.CreatedAt,
		&reservation.ReleasedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Reservation{}, ErrReservationNotFound
		}
		return models.Reservation{}, err
	}
	return reservation, nil
}

func collectReservations(rows pgx.Rows) ([]models.Reservation, error) {
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, rows.Err()
}
