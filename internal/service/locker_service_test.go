package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lockerhub/internal/models"
)

func TestLockerService_Create(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	locker := h.locker(t, "A1")
	require.Equal(t, models.LockerStatusAvailable, locker.Status)
	require.NotEmpty(t, locker.ID)

	_, err := h.lockers.Create(ctx, LockerInput{Number: "A1", Location: "Basement"})
	require.ErrorIs(t, err, ErrLockerNumberTaken)
	require.Equal(t, KindConflict, KindOf(err))

	_, err = h.lockers.Create(ctx, LockerInput{Number: " ", Location: "Lobby"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = h.lockers.Create(ctx, LockerInput{Number: "A2"})
	require.ErrorIs(t, err, ErrValidation)

	require.Equal(t, []models.EventType{models.EventLockerCreated}, h.events.types())
}

func TestLockerService_Update(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a1 := h.locker(t, "A1")
	h.locker(t, "A2")

	updated, err := h.lockers.Update(ctx, a1.ID, LockerInput{Number: "A9", Location: "Roof"})
	require.NoError(t, err)
	require.Equal(t, "A9", updated.Number)
	require.Equal(t, "Roof", updated.Location)

	_, err = h.lockers.Update(ctx, a1.ID, LockerInput{Number: "A2", Location: "Roof"})
	require.ErrorIs(t, err, ErrLockerNumberTaken)

	_, err = h.lockers.Update(ctx, "missing", LockerInput{Number: "Z1", Location: "Roof"})
	require.ErrorIs(t, err, ErrLockerNotFound)
}

func TestLockerService_List(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a1 := h.locker(t, "A1")
	h.locker(t, "A2")
	_, err := h.lockers.Create(ctx, LockerInput{Number: "B1", Location: "Basement"})
	require.NoError(t, err)

	_, err = h.reservations.Create(ctx, userIdentity("u1"), a1.ID, h.clock.Now().Add(time.Hour))
	require.NoError(t, err)

	available, err := h.lockers.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 2)

	lobby, err := h.lockers.List(ctx, models.LockerFilter{Location: "Lobby"})
	require.NoError(t, err)
	require.Len(t, lobby, 2)
	require.Equal(t, "A1", lobby[0].Number)

	_, err = h.lockers.List(ctx, models.LockerFilter{Status: "broken"})
	require.ErrorIs(t, err, ErrValidation)

	// Listing expires reservations whose window has passed.
	h.clock.Advance(2 * time.Hour)
	available, err = h.lockers.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 3)

	got, err := h.lockers.Get(ctx, a1.ID)
	require.NoError(t, err)
	require.Equal(t, models.LockerStatusAvailable, got.Status)

	_, err = h.lockers.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrLockerNotFound)
}

func TestLockerService_DeactivateAndReactivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a1 := h.locker(t, "A1")

	_, err := h.reservations.Create(ctx, userIdentity("u1"), a1.ID, h.clock.Now().Add(time.Hour))
	require.NoError(t, err)

	result, err := h.lockers.Deactivate(ctx, a1.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.Released)
	require.Equal(t, models.LockerStatusInactive, result.Locker.Status)

	result, err = h.lockers.Deactivate(ctx, a1.ID)
	require.NoError(t, err)
	require.Zero(t, result.Released)

	_, err = h.reservations.Create(ctx, userIdentity("u2"), a1.ID, h.clock.Now().Add(time.Hour))
	require.ErrorIs(t, err, ErrLockerNotAvailable)

	locker, err := h.lockers.Reactivate(ctx, a1.ID)
	require.NoError(t, err)
	require.Equal(t, models.LockerStatusAvailable, locker.Status)

	_, err = h.lockers.Reactivate(ctx, a1.ID)
	require.ErrorIs(t, err, ErrLockerNotInactive)

	_, err = h.lockers.Deactivate(ctx, "missing")
	require.ErrorIs(t, err, ErrLockerNotFound)
}
