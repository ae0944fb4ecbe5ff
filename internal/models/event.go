package models

import "time"

type EventType string

const (
	EventLockerCreated            EventType = "locker.created"
	EventLockerUpdated            EventType = "locker.updated"
	EventLockerDeactivated        EventType = "locker.deactivated"
	EventLockerReactivated        EventType = "locker.reactivated"
	EventReservationCreated       EventType = "reservation.created"
	EventReservationReleased      EventType = "reservation.released"
	EventReservationExpired       EventType = "reservation.expired"
	EventReservationWindowUpdated EventType = "reservation.window_updated"
)

// Event is a state change notification. It never carries PINs or tokens.
type Event struct {
	ID            string
	Type          EventType
	OccurredAt    time.Time
	LockerID      string
	ReservationID string
	UserID        string
	Count         int
}
