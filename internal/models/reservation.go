package models

import "time"

type Reservation struct {
	ID            string
	LockerID      string
	UserID        string
	AccessPIN     string
	ReservedUntil time.Time
	IsActive      bool
	CreatedAt     time.Time
	ReleasedAt    *time.Time
}

// Due reports whether an active reservation has reached the end of its window.
func (r Reservation) Due(now time.Time) bool {
	return r.IsActive && !r.ReservedUntil.After(now)
}

type ReservationFilter struct {
	UserID     string
	LockerID   string
	ActiveOnly bool
}

func (f ReservationFilter) Match(r Reservation) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.LockerID != "" && r.LockerID != f.LockerID {
		return false
	}
	if f.ActiveOnly && !r.IsActive {
		return false
	}
	return true
}
