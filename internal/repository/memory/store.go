// Package memory holds in-process implementations of the repositories. All
// three share one lock, so every operation is a single critical section and
// the cross-record transitions are atomic the same way the Postgres
// transactions are.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lockerhub/internal/models"
	"lockerhub/internal/repository"
)

type state struct {
	mu sync.Mutex

	users          map[string]models.User
	usersByName    map[string]string
	lockers        map[string]models.Locker
	lockersByNum   map[string]string
	reservations   map[string]models.Reservation
	activeByLocker map[string]string
}

// Store bundles the user, locker and reservation repositories over shared state.
type Store struct {
	Users        *UserRepository
	Lockers      *LockerRepository
	Reservations *ReservationRepository
}

func New() *Store {
	s := &state{
		users:          make(map[string]models.User),
		usersByName:    make(map[string]string),
		lockers:        make(map[string]models.Locker),
		lockersByNum:   make(map[string]string),
		reservations:   make(map[string]models.Reservation),
		activeByLocker: make(map[string]string),
	}
	return &Store{
		Users:        &UserRepository{s: s},
		Lockers:      &LockerRepository{s: s},
		Reservations: &ReservationRepository{s: s},
	}
}

type UserRepository struct {
	s *state
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.usersByName[user.Username]; exists {
		return repository.ErrUsernameTaken
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = user
	r.s.usersByName[user.Username] = user.ID
	return nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.usersByName[username]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return r.s.users[id], nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepository) SetStaff(ctx context.Context, id string, isStaff bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.IsStaff = isStaff
	user.UpdatedAt = time.Now()
	r.s.users[id] = user
	return nil
}

type LockerRepository struct {
	s *state
}

func (r *LockerRepository) Create(ctx context.Context, locker models.Locker) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.lockersByNum[locker.Number]; exists {
		return repository.ErrLockerNumberTaken
	}
	locker.UpdatedAt = locker.CreatedAt
	r.s.lockers[locker.ID] = locker
	r.s.lockersByNum[locker.Number] = locker.ID
	return nil
}

func (r *LockerRepository) Update(ctx context.Context, id, number, location string) (models.Locker, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	locker, ok := r.s.lockers[id]
	if !ok {
		return models.Locker{}, repository.ErrLockerNotFound
	}
	if owner, exists := r.s.lockersByNum[number]; exists && owner != id {
		return models.Locker{}, repository.ErrLockerNumberTaken
	}

	delete(r.s.lockersByNum, locker.Number)
	locker.Number = number
	locker.Location = location
	locker.UpdatedAt = time.Now()
	r.s.lockers[id] = locker
	r.s.lockersByNum[number] = id
	return locker, nil
}

func (r *LockerRepository) GetByID(ctx context.Context, id string) (models.Locker, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	locker, ok := r.s.lockers[id]
	if !ok {
		return models.Locker{}, repository.ErrLockerNotFound
	}
	return locker, nil
}

func (r *LockerRepository) GetByNumber(ctx context.Context, number string) (models.Locker, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.lockersByNum[number]
	if !ok {
		return models.Locker{}, repository.ErrLockerNotFound
	}
	return r.s.lockers[id], nil
}

func (r *LockerRepository) List(ctx context.Context, filter models.LockerFilter) ([]models.Locker, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var lockers []models.Locker
	for _, locker := range r.s.lockers {
		if filter.Match(locker) {
			lockers = append(lockers, locker)
		}
	}
	sort.Slice(lockers, func(i, j int) bool {
		return lockers[i].Number < lockers[j].Number
	})
	return lockers, nil
}

func (r *LockerRepository) Deactivate(ctx context.Context, id string, now time.Time) (models.Locker, []models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	locker, ok := r.s.lockers[id]
	if !ok {
		return models.Locker{}, nil, repository.ErrLockerNotFound
	}
	if locker.Status == models.LockerStatusInactive {
		return locker, nil, nil
	}

	var released []models.Reservation
	if resID, ok := r.s.activeByLocker[id]; ok {
		released = append(released, r.s.deactivateReservation(resID, now))
	}

	locker.Status = models.LockerStatusInactive
	locker.UpdatedAt = now
	r.s.lockers[id] = locker
	return locker, released, nil
}

func (r *LockerRepository) Reactivate(ctx context.Context, id string) (models.Locker, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	locker, ok := r.s.lockers[id]
	if !ok {
		return models.Locker{}, repository.ErrLockerNotFound
	}
	if locker.Status != models.LockerStatusInactive {
		return models.Locker{}, repository.ErrLockerNotInactive
	}
	locker.Status = models.LockerStatusAvailable
	locker.UpdatedAt = time.Now()
	r.s.lockers[id] = locker
	return locker, nil
}

type ReservationRepository struct {
	s *state
}

func (r *ReservationRepository) Create(ctx context.Context, reservation models.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	locker, ok := r.s.lockers[reservation.LockerID]
	if !ok {
		return repository.ErrLockerNotFound
	}
	if locker.Status != models.LockerStatusAvailable {
		return repository.ErrLockerNotAvailable
	}
	if _, taken := r.s.activeByLocker[locker.ID]; taken {
		return repository.ErrLockerNotAvailable
	}

	locker.Status = models.LockerStatusReserved
	locker.UpdatedAt = reservation.CreatedAt
	r.s.lockers[locker.ID] = locker

	reservation.IsActive = true
	reservation.ReleasedAt = nil
	r.s.reservations[reservation.ID] = reservation
	r.s.activeByLocker[locker.ID] = reservation.ID
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reservation, ok := r.s.reservations[id]
	if !ok {
		return models.Reservation{}, repository.ErrReservationNotFound
	}
	return reservation, nil
}

func (r *ReservationRepository) GetActiveByLocker(ctx context.Context, lockerID string) (models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.activeByLocker[lockerID]
	if !ok {
		return models.Reservation{}, repository.ErrReservationNotFound
	}
	return r.s.reservations[id], nil
}

func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var reservations []models.Reservation
	for _, reservation := range r.s.reservations {
		if filter.Match(reservation) {
			reservations = append(reservations, reservation)
		}
	}
	sort.Slice(reservations, func(i, j int) bool {
		if reservations[i].CreatedAt.Equal(reservations[j].CreatedAt) {
			return reservations[i].ID > reservations[j].ID
		}
		return reservations[i].CreatedAt.After(reservations[j].CreatedAt)
	})
	return reservations, nil
}

func (r *ReservationRepository) Release(ctx context.Context, id string, now time.Time) (models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reservation, ok := r.s.reservations[id]
	if !ok {
		return models.Reservation{}, repository.ErrReservationNotFound
	}
	if !reservation.IsActive {
		return models.Reservation{}, repository.ErrAlreadyReleased
	}
	return r.s.deactivateReservation(id, now), nil
}

func (r *ReservationRepository) UpdateWindow(ctx context.Context, id string, until time.Time) (models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reservation, ok := r.s.reservations[id]
	if !ok {
		return models.Reservation{}, repository.ErrReservationNotFound
	}
	reservation.ReservedUntil = until
	r.s.reservations[id] = reservation
	return reservation, nil
}

func (r *ReservationRepository) ExpireDue(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var expired []models.Reservation
	for _, id := range r.s.activeByLocker {
		if r.s.reservations[id].Due(now) {
			expired = append(expired, r.s.deactivateReservation(id, now))
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].LockerID < expired[j].LockerID
	})
	return expired, nil
}

// deactivateReservation releases an active reservation and returns its locker
// to available when the locker is still reserved. Callers hold s.mu.
func (s *state) deactivateReservation(id string, now time.Time) models.Reservation {
	reservation := s.reservations[id]
	releasedAt := now
	reservation.IsActive = false
	reservation.ReleasedAt = &releasedAt
	s.reservations[id] = reservation
	delete(s.activeByLocker, reservation.LockerID)

	if locker, ok := s.lockers[reservation.LockerID]; ok && locker.Status == models.LockerStatusReserved {
		locker.Status = models.LockerStatusAvailable
		locker.UpdatedAt = now
		s.lockers[locker.ID] = locker
	}
	return reservation
}
