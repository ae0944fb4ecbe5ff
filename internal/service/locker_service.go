package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lockerhub/internal/ids"
	"lockerhub/internal/models"
	"lockerhub/internal/repository"
)

const (
	maxLockerNumberLength = 20
	maxLocationLength     = 100
)

type LockerService struct {
	lockers      LockerStore
	reservations ReservationStore
	events       EventPublisher
	log          zerolog.Logger
	now          func() time.Time
}

func NewLockerService(lockers LockerStore, reservations ReservationStore, events EventPublisher, log zerolog.Logger) *LockerService {
	return &LockerService{
		lockers:      lockers,
		reservations: reservations,
		events:       events,
		log:          log,
		now:          time.Now,
	}
}

func (s *LockerService) WithClock(now func() time.Time) *LockerService {
	s.now = now
	return s
}

type LockerInput struct {
	Number   string
	Location string
}

func (in *LockerInput) normalize() error {
	in.Number = strings.TrimSpace(in.Number)
	in.Location = strings.TrimSpace(in.Location)

	switch {
	case in.Number == "":
		return ErrValidation.With("locker_number is required")
	case len(in.Number) > maxLockerNumberLength:
		return ErrValidation.With("locker_number must be at most %d characters", maxLockerNumberLength)
	case in.Location == "":
		return ErrValidation.With("location is required")
	case len(in.Location) > maxLocationLength:
		return ErrValidation.With("location must be at most %d characters", maxLocationLength)
	}
	return nil
}

// Create adds an available locker.
func (s *LockerService) Create(ctx context.Context, input LockerInput) (models.Locker, error) {
	if err := input.normalize(); err != nil {
		return models.Locker{}, err
	}

	now := s.now().UTC()
	locker := models.Locker{
		ID:        ids.New(),
		Number:    input.Number,
		Location:  input.Location,
		Status:    models.LockerStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.lockers.Create(ctx, locker); err != nil {
		return models.Locker{}, storeErr("create locker", err)
	}

	publish(ctx, s.events, s.log, models.Event{
		Type:       models.EventLockerCreated,
		OccurredAt: now,
		LockerID:   locker.ID,
	})
	return locker, nil
}

// Update changes number and location. Status is not editable here.
func (s *LockerService) Update(ctx context.Context, id string, input LockerInput) (models.Locker, error) {
	if err := input.normalize(); err != nil {
		return models.Locker{}, err
	}

	locker, err := s.lockers.Update(ctx, id, input.Number, input.Location)
	if err != nil {
		return models.Locker{}, storeErr("update locker", err)
	}

	publish(ctx, s.events, s.log, models.Event{
		Type:     models.EventLockerUpdated,
		LockerID: locker.ID,
	})
	return locker, nil
}

func (s *LockerService) Get(ctx context.Context, id string) (models.Locker, error) {
	if _, err := expireDue(ctx, s.reservations, s.events, s.log, s.now()); err != nil {
		return models.Locker{}, err
	}
	locker, err := s.lockers.GetByID(ctx, id)
	if err != nil {
		return models.Locker{}, storeErr("get locker", err)
	}
	return locker, nil
}

func (s *LockerService) List(ctx context.Context, filter models.LockerFilter) ([]models.Locker, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrValidation.With("unknown locker status %q", filter.Status)
	}
	if _, err := expireDue(ctx, s.reservations, s.events, s.log, s.now()); err != nil {
		return nil, err
	}
	lockers, err := s.lockers.List(ctx, filter)
	if err != nil {
		return nil, storeErr("list lockers", err)
	}
	if lockers == nil {
		lockers = []models.Locker{}
	}
	return lockers, nil
}

func (s *LockerService) ListAvailable(ctx context.Context) ([]models.Locker, error) {
	return s.List(ctx, models.LockerFilter{Status: models.LockerStatusAvailable})
}

type DeactivateResult struct {
	Locker   models.Locker
	Released int
}

// Deactivate takes a locker out of service and releases its active
// reservation in the same transaction. Deactivating an inactive locker is a
// no-op that reports zero releases.
func (s *LockerService) Deactivate(ctx context.Context, id string) (DeactivateResult, error) {
	now := s.now().UTC()
	locker, released, err := s.lockers.Deactivate(ctx, id, now)
	if err != nil {
		return DeactivateResult{}, storeErr("deactivate locker", err)
	}

	for _, r := range released {
		publish(ctx, s.events, s.log, models.Event{
			Type:          models.EventReservationReleased,
			OccurredAt:    now,
			LockerID:      r.LockerID,
			ReservationID: r.ID,
			UserID:        r.UserID,
		})
	}
	publish(ctx, s.events, s.log, models.Event{
		Type:       models.EventLockerDeactivated,
		OccurredAt: now,
		LockerID:   locker.ID,
		Count:      len(released),
	})

	return DeactivateResult{Locker: locker, Released: len(released)}, nil
}

// Reactivate returns an inactive locker to service.
func (s *LockerService) Reactivate(ctx context.Context, id string) (models.Locker, error) {
	locker, err := s.lockers.Reactivate(ctx, id)
	if err != nil {
		return models.Locker{}, storeErr("reactivate locker", err)
	}

	publish(ctx, s.events, s.log, models.Event{
		Type:     models.EventLockerReactivated,
		LockerID: locker.ID,
	})
	return locker, nil
}

// Lookup returns the lockers with the given ids keyed by id. Unknown ids are
// left out. It does not run the expiry step.
func (s *LockerService) Lookup(ctx context.Context, lockerIDs []string) (map[string]models.Locker, error) {
	out := make(map[string]models.Locker, len(lockerIDs))
	switch len(lockerIDs) {
	case 0:
		return out, nil
	case 1:
		locker, err := s.lockers.GetByID(ctx, lockerIDs[0])
		if err != nil {
			if errors.Is(err, repository.ErrLockerNotFound) {
				return out, nil
			}
			return nil, storeErr("get locker", err)
		}
		out[locker.ID] = locker
		return out, nil
	}

	wanted := make(map[string]struct{}, len(lockerIDs))
	for _, id := range lockerIDs {
		wanted[id] = struct{}{}
	}
	lockers, err := s.lockers.List(ctx, models.LockerFilter{})
	if err != nil {
		return nil, storeErr("list lockers", err)
	}
	for _, l := range lockers {
		if _, ok := wanted[l.ID]; ok {
			out[l.ID] = l
		}
	}
	return out, nil
}
