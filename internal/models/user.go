package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// RoleFor derives the caller role from the staff flag carried in the user record or session claims.
func RoleFor(isStaff bool) Role {
	if isStaff {
		return RoleAdmin
	}
	return RoleUser
}

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	IsStaff      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) Role() Role {
	return RoleFor(u.IsStaff)
}

// RefreshSession is the server-side record behind an opaque refresh token.
type RefreshSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// PreviousHash is the hex hash of the token this one was rotated from.
	PreviousHash string `json:"previous_hash,omitempty"`
}

func (s RefreshSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionPair is what a client holds after login or refresh.
type SessionPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}
