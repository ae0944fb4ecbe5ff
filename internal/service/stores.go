package service

import (
	"context"
	"time"

	"lockerhub/internal/models"
)

// The store interfaces are satisfied by both the Postgres repositories and
// the memory driver.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	SetStaff(ctx context.Context, id string, isStaff bool) error
}

type LockerStore interface {
	Create(ctx context.Context, locker models.Locker) error
	Update(ctx context.Context, id, number, location string) (models.Locker, error)
	GetByID(ctx context.Context, id string) (models.Locker, error)
	GetByNumber(ctx context.Context, number string) (models.Locker, error)
	List(ctx context.Context, filter models.LockerFilter) ([]models.Locker, error)
	Deactivate(ctx context.Context, id string, now time.Time) (models.Locker, []models.Reservation, error)
	Reactivate(ctx context.Context, id string) (models.Locker, error)
}

type ReservationStore interface {
	Create(ctx context.Context, reservation models.Reservation) error
	GetByID(ctx context.Context, id string) (models.Reservation, error)
	GetActiveByLocker(ctx context.Context, lockerID string) (models.Reservation, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error)
	Release(ctx context.Context, id string, now time.Time) (models.Reservation, error)
	UpdateWindow(ctx context.Context, id string, until time.Time) (models.Reservation, error)
	ExpireDue(ctx context.Context, now time.Time) ([]models.Reservation, error)
}

// RefreshStore keeps server-side refresh sessions keyed by token hash.
type RefreshStore interface {
	Save(ctx context.Context, tokenHash []byte, session models.RefreshSession, ttl time.Duration) error
	// Take atomically loads and deletes a session. ok is false when none exists.
	Take(ctx context.Context, tokenHash []byte) (session models.RefreshSession, ok bool, err error)
	Delete(ctx context.Context, tokenHash []byte) error
	SaveRotation(ctx context.Context, tokenHash []byte, pair models.SessionPair, ttl time.Duration) error
	Rotation(ctx context.Context, tokenHash []byte) (pair models.SessionPair, ok bool, err error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// UnlockLimiter counts failed unlock attempts per key.
type UnlockLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.Event) error { return nil }

// NopPublisher discards events.
var NopPublisher EventPublisher = nopPublisher{}
