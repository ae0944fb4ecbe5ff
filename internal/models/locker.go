package models

import "time"

type LockerStatus string

const (
	LockerStatusAvailable LockerStatus = "available"
	LockerStatusReserved  LockerStatus = "reserved"
	LockerStatusInactive  LockerStatus = "inactive"
)

func (s LockerStatus) Valid() bool {
	switch s {
	case LockerStatusAvailable, LockerStatusReserved, LockerStatusInactive:
		return true
	}
	return false
}

type Locker struct {
	ID        string
	Number    string
	Location  string
	Status    LockerStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type LockerFilter struct {
	Status   LockerStatus
	Location string
}

func (f LockerFilter) Match(l Locker) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Location != "" && l.Location != f.Location {
		return false
	}
	return true
}
