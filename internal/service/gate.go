package service

import (
	"fmt"

	"lockerhub/internal/models"
)

// Capability names a group of operations behind the access gate.
type Capability int

const (
	CapViewLockers Capability = iota + 1
	CapSelfServe
	CapOwnReservations
	CapManageLockers
	CapManageReservations
)

func (c Capability) String() string {
	switch c {
	case CapViewLockers:
		return "view_lockers"
	case CapSelfServe:
		return "self_serve"
	case CapOwnReservations:
		return "own_reservations"
	case CapManageLockers:
		return "manage_lockers"
	case CapManageReservations:
		return "manage_reservations"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Identity is the decoded caller of a protected operation.
type Identity struct {
	UserID   string
	Username string
	IsStaff  bool
	Role     models.Role
}

func (id Identity) IsAdmin() bool {
	return id.Role == models.RoleAdmin
}

// Allowed reports whether role may use capability. Unknown roles and
// capabilities are denied.
func Allowed(role models.Role, capability Capability) bool {
	switch role {
	case models.RoleUser:
		switch capability {
		case CapViewLockers, CapSelfServe, CapOwnReservations:
			return true
		case CapManageLockers, CapManageReservations:
			return false
		}
	case models.RoleAdmin:
		switch capability {
		case CapViewLockers, CapOwnReservations, CapManageLockers, CapManageReservations:
			return true
		case CapSelfServe:
			return false
		}
	}
	return false
}

// Authorize returns ErrForbidden unless the identity holds capability.
func Authorize(id Identity, capability Capability) error {
	if !Allowed(id.Role, capability) {
		return ErrForbidden.With("%s requires a different role than %s", capability, id.Role)
	}
	return nil
}
