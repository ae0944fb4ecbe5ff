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

type LockerRepository struct {
	pool *pgxpool.Pool
}

func NewLockerRepository(pool *pgxpool.Pool) *LockerRepository {
	return &LockerRepository{pool: pool}
}

const lockerColumns = `id, locker_number, location, status, created_at, updated_at`

func (r *LockerRepository) Create(ctx context.Context, locker models.Locker) error {
	const query = `
		INSERT INTO lockers (
			id, locker_number, location, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $5
		)
	`

	_, err := r.pool.Exec(ctx, query,
		locker.ID,
		locker.Number,
		locker.Location,
		locker.Status,
		locker.CreatedAt,
	)
	return mapPgError(err)
}

func (r *LockerRepository) Update(ctx context.Context, id, number, location string) (models.Locker, error) {
	const query = `
		UPDATE lockers
		SET locker_number = $2, location = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + lockerColumns

	locker, err := scanLocker(r.pool.QueryRow(ctx, query, id, number, location))
	if err != nil {
		return models.Locker{}, mapPgError(err)
	}
	return locker, nil
}

func (r *LockerRepository) GetByID(ctx context.Context, id string) (models.Locker, error) {
	const query = `SELECT ` + lockerColumns + ` FROM lockers WHERE id = $1`
	return scanLocker(r.pool.QueryRow(ctx, query, id))
}

func (r *LockerRepository) GetByNumber(ctx context.Context, number string) (models.Locker, error) {
	const query = `SELECT ` + lockerColumns + ` FROM lockers WHERE locker_number = $1`
	return scanLocker(r.pool.QueryRow(ctx, query, number))
}

func (r *LockerRepository) List(ctx context.Context, filter models.LockerFilter) ([]models.Locker, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Location != "" {
		args = append(args, filter.Location)
		where = append(where, fmt.Sprintf("location = $%d", len(args)))
	}

	query := `SELECT ` + lockerColumns + ` FROM lockers`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY locker_number`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lockers []models.Locker
	for rows.Next() {
		locker, err := scanLocker(rows)
		if err != nil {
			return nil, err
		}
		lockers = append(lockers, locker)
	}
	return lockers, rows.Err()
}

// Deactivate marks the locker inactive and releases its active reservation in
// one transaction. An already inactive locker is returned unchanged with no
// released reservations.
func (r *LockerRepository) Deactivate(ctx context.Context, id string, now time.Time) (models.Locker, []models.Reservation, error) {
	var (
		locker   models.Locker
		released []models.Reservation
	)

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		current, err := lockLocker(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == models.LockerStatusInactive {
			locker = current
			return nil
		}

		const releaseQuery = `
			UPDATE reservations
			SET is_active = FALSE, released_at = $2
			WHERE locker_id = $1 AND is_active
			RETURNING ` + reservationColumns

		rows, err := tx.Query(ctx, releaseQuery, id, now)
		if err != nil {
			return err
		}
		released, err = collectReservations(rows)
		if err != nil {
			return err
		}

		const deactivateQuery = `
			UPDATE lockers
			SET status = 'inactive', updated_at = $2
			WHERE id = $1
			RETURNING ` + lockerColumns

		locker, err = scanLocker(tx.QueryRow(ctx, deactivateQuery, id, now))
		return err
	})
	if err != nil {
		return models.Locker{}, nil, mapPgError(err)
	}
	return locker, released, nil
}

func (r *LockerRepository) Reactivate(ctx context.Context, id string) (models.Locker, error) {
	const query = `
		UPDATE lockers
		SET status = 'available', updated_at = NOW()
		WHERE id = $1 AND status = 'inactive'
		RETURNING ` + lockerColumns

	locker, err := scanLocker(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, ErrLockerNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return models.Locker{}, getErr
		}
		return models.Locker{}, ErrLockerNotInactive
	}
	if err != nil {
		return models.Locker{}, mapPgError(err)
	}
	return locker, nil
}

// lockLocker takes the row lock every state transition starts with, so that
// create, release, expire and deactivate on one locker serialize.
func lockLocker(ctx context.Context, tx pgx.Tx, id string) (models.Locker, error) {
	const query = `SELECT ` + lockerColumns + ` FROM lockers WHERE id = $1 FOR UPDATE`
	return scanLocker(tx.QueryRow(ctx, query, id))
}

func scanLocker(row pgx.Row) (models.Locker, error) {
	var locker models.Locker
	if err := row.Scan(
		&locker.ID,
		&locker.Number,
		&locker.Location,
		&locker.Status,
		&locker.CreatedAt,
		&locker.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Locker{}, ErrLockerNotFound
		}
		return models.Locker{}, err
	}
	return locker, nil
}
