package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lockerhub/internal/config"
	"lockerhub/internal/ids"
	"lockerhub/internal/models"
	"lockerhub/internal/repository"
)

type ReservationService struct {
	lockers      LockerStore
	reservations ReservationStore
	limiter      UnlockLimiter
	events       EventPublisher
	cfg          config.ReservationsConfig
	log          zerolog.Logger
	now          func() time.Time
}

func NewReservationService(
	lockers LockerStore,
	reservations ReservationStore,
	limiter UnlockLimiter,
	events EventPublisher,
	cfg config.ReservationsConfig,
	log zerolog.Logger,
) *ReservationService {
	return &ReservationService{
		lockers:      lockers,
		reservations: reservations,
		limiter:      limiter,
		events:       events,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

func (s *ReservationService) WithClock(now func() time.Time) *ReservationService {
	s.now = now
	return s
}

func (s *ReservationService) checkWindow(until, now time.Time) error {
	if until.Before(now.Add(s.cfg.MinLeadTime)) {
		return ErrInvalidWindow
	}
	return nil
}

// Create reserves an available locker for the caller and issues its PIN.
func (s *ReservationService) Create(ctx context.Context, caller Identity, lockerID string, reservedUntil time.Time) (models.Reservation, error) {
	now := s.now().UTC()
	if err := s.checkWindow(reservedUntil, now); err != nil {
		return models.Reservation{}, err
	}
	if _, err := expireDue(ctx, s.reservations, s.events, s.log, now); err != nil {
		return models.Reservation{}, err
	}

	pin, err := GeneratePIN()
	if err != nil {
		return models.Reservation{}, err
	}

	reservation := models.Reservation{
		ID:            ids.New(),
		LockerID:      lockerID,
		UserID:        caller.UserID,
		AccessPIN:     pin,
		ReservedUntil: reservedUntil.UTC(),
		IsActive:      true,
		CreatedAt:     now,
	}
	if err := s.reservations.Create(ctx, reservation); err != nil {
		return models.Reservation{}, storeErr("create reservation", err)
	}

	publish(ctx, s.events, s.log, models.Event{
		Type:          models.EventReservationCreated,
		OccurredAt:    now,
		LockerID:      lockerID,
		ReservationID: reservation.ID,
		UserID:        caller.UserID,
	})
	return reservation, nil
}

func (s *ReservationService) get(ctx context.Context, caller Identity, id string) (models.Reservation, error) {
	reservation, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return models.Reservation{}, storeErr("get reservation", err)
	}
	if !caller.IsAdmin() && reservation.UserID != caller.UserID {
		return models.Reservation{}, ErrNotOwner
	}
	return reservation, nil
}

// Get returns a reservation to its owner or an admin.
func (s *ReservationService) Get(ctx context.Context, caller Identity, id string) (models.Reservation, error) {
	if _, err := expireDue(ctx, s.reservations, s.events, s.log, s.now()); err != nil {
		return models.Reservation{}, err
	}
	return s.get(ctx, caller, id)
}

// Release ends an active reservation early and frees its locker.
// A reservation whose window already ended is expired first and reported as
// already released.
func (s *ReservationService) Release(ctx context.Context, caller Identity, id string) (models.Reservation, error) {
	now := s.now().UTC()
	if _, err := expireDue(ctx, s.reservations, s.events, s.log, now); err != nil {
		return models.Reservation{}, err
	}
	if _, err := s.get(ctx, caller, id); err != nil {
		return models.Reservation{}, err
	}

	reservation, err := s.reservations.Release(ctx, id, now)
	if err != nil {
		return models.Reservation{}, storeErr("release reservation", err)
	}

	publish(ctx, s.events, s.log, models.Event{
		Type:          models.EventReservationReleased,
		OccurredAt:    now,
		LockerID:      reservation.LockerID,
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
	})
	return reservation, nil
}

// AdminUpdateWindow moves the end of a reservation. The PIN is unchanged.
func (s *ReservationService) AdminUpdateWindow(ctx context.Context, id string, reservedUntil time.Time) (models.Reservation, error) {
	now := s.now().UTC()
	if err := s.checkWindow(reservedUntil, now); err != nil {
		return models.Reservation{}, err
	}
	// Settle ended windows first so an extension never revives an expired
	// reservation as active.
	if _, err := expireDue(ctx, s.reservations, s.events, s.log, now); err != nil {
		return models.Reservation{}, err
	}

	reservation, err := s.reservations.UpdateWindow(ctx, id, reservedUntil.UTC())
	if err != nil {
		return models.Reservation{}, storeErr("update reservation window", err)
	}

	publish(ctx, s.events, s.log, models.Event{
		Type:          models.EventReservationWindowUpdated,
		OccurredAt:    now,
		LockerID:      reservation.LockerID,
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
	})
	return reservation, nil
}

// ExpireDue deactivates every active reservation past its window and returns
// how many it touched. Running it again with the same clock returns 0.
func (s *ReservationService) ExpireDue(ctx context.Context) (int, error) {
	return expireDue(ctx, s.reservations, s.events, s.log, s.now().UTC())
}

type ListReservationsInput struct {
	ActiveOnly bool
}

// List returns the caller's reservations, or every reservation for an admin,
// newest first.
func (s *ReservationService) List(ctx context.Context, caller Identity, input ListReservationsInput) ([]models.Reservation, error) {
	if _, err := expireDue(ctx, s.reservations, s.events, s.log, s.now()); err != nil {
		return nil, err
	}

	filter := models.ReservationFilter{ActiveOnly: input.ActiveOnly}
	if !caller.IsAdmin() {
		filter.UserID = caller.UserID
	}
	reservations, err := s.reservations.List(ctx, filter)
	if err != nil {
		return nil, storeErr("list reservations", err)
	}
	if reservations == nil {
		reservations = []models.Reservation{}
	}
	return reservations, nil
}

type UnlockResult struct {
	Locker      models.Locker
	Reservation models.Reservation
}

// UnlockInput is one attempt at a terminal. Caller identifies where the
// attempt came from (the client address over HTTP) and scopes the failure
// counter, so one caller's wrong guesses never lock out another.
type UnlockInput struct {
	Caller string
	Number string
	PIN    string
}

// dummyPIN is compared on paths that have no reservation so every failure
// costs the same work.
const dummyPIN = "000000"

func unlockKey(caller, number string) string {
	if caller == "" {
		caller = "unknown"
	}
	return caller + ":" + number
}

// VerifyUnlock checks a locker number and PIN without a session. Every
// failure reports the same ErrPinMismatch. The reservation stays active.
func (s *ReservationService) VerifyUnlock(ctx context.Context, input UnlockInput) (UnlockResult, error) {
	number := strings.TrimSpace(input.Number)
	key := unlockKey(input.Caller, number)

	blocked, err := s.limiter.Blocked(ctx, key)
	if err != nil {
		return UnlockResult{}, storageErr("check unlock attempts", err)
	}
	if blocked {
		return UnlockResult{}, ErrTooManyAttempts
	}

	now := s.now().UTC()
	if _, err := expireDue(ctx, s.reservations, s.events, s.log, now); err != nil {
		return UnlockResult{}, err
	}

	result, err := s.matchPIN(ctx, number, input.PIN, now)
	if err != nil {
		if errors.Is(err, ErrPinMismatch) {
			if ferr := s.limiter.Fail(ctx, key); ferr != nil {
				s.log.Warn().Err(ferr).Msg("record unlock failure")
			}
		}
		return UnlockResult{}, err
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.log.Warn().Err(err).Msg("reset unlock attempts")
	}
	s.log.Info().
		Str("locker_id", result.Locker.ID).
		Str("reservation_id", result.Reservation.ID).
		Msg("locker unlocked")
	return result, nil
}

// matchPIN does one locker lookup, one active-reservation lookup and one
// constant-time compare on every path, whether or not the number exists.
func (s *ReservationService) matchPIN(ctx context.Context, number, pin string, now time.Time) (UnlockResult, error) {
	if number == "" || !ValidPIN(pin) {
		return UnlockResult{}, ErrPinMismatch
	}

	locker, err := s.lockers.GetByNumber(ctx, number)
	if err != nil && !errors.Is(err, repository.ErrLockerNotFound) {
		return UnlockResult{}, storageErr("get locker by number", err)
	}
	// With no locker the lookup below runs against an id that cannot exist.
	reserved := err == nil && locker.Status == models.LockerStatusReserved

	reservation, err := s.reservations.GetActiveByLocker(ctx, locker.ID)
	if err != nil && !errors.Is(err, repository.ErrReservationNotFound) {
		return UnlockResult{}, storageErr("get active reservation", err)
	}
	found := err == nil

	expected := dummyPIN
	if found {
		expected = reservation.AccessPIN
	}
	matched := pinEqual(expected, pin)

	if !reserved || !found || reservation.Due(now) || !matched {
		return UnlockResult{}, ErrPinMismatch
	}
	return UnlockResult{Locker: locker, Reservation: reservation}, nil
}
