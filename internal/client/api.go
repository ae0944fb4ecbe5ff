package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"lockerhub/internal/models"
)

type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	IsStaff  bool      `json:"is_staff"`
	Role     string    `json:"role"`
	Joined   time.Time `json:"date_joined"`
}

type Locker struct {
	ID           string    `json:"id"`
	LockerNumber string    `json:"locker_number"`
	Location     string    `json:"location"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Reservation struct {
	ID            string     `json:"id"`
	Locker        string     `json:"locker"`
	LockerDetails *Locker    `json:"locker_details,omitempty"`
	User          string     `json:"user"`
	AccessPIN     string     `json:"access_pin,omitempty"`
	ReservedAt    time.Time  `json:"reserved_at"`
	ReservedUntil time.Time  `json:"reserved_until"`
	IsActive      bool       `json:"is_active"`
	ReleasedAt    *time.Time `json:"released_at"`
}

type Deactivation struct {
	Message  string `json:"message"`
	Locker   Locker `json:"locker"`
	Released int    `json:"released_reservations"`
}

type UnlockResult struct {
	Message     string      `json:"message"`
	Locker      Locker      `json:"locker"`
	Reservation Reservation `json:"reservation"`
}

type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/healthz"}, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, username, email, password string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   map[string]string{"username": username, "email": email, "password": password},
	}, &out)
	return out.User, err
}

// Login replaces the held session with a fresh pair.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var pair models.SessionPair
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   map[string]string{"username": username, "password": password},
	}, &pair); err != nil {
		return err
	}
	c.setSession(pair)
	return nil
}

// Logout revokes the refresh token server side and drops the held session.
// The local session is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	current := c.Session()
	if current.RefreshToken == "" {
		return nil
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/logout",
		body:   map[string]string{"refresh": current.RefreshToken},
	}, nil)
	c.setSession(models.SessionPair{})
	return err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/auth/me", authed: true}, &out)
	return out, err
}

type LockerQuery struct {
	Status   string
	Location string
}

func (q LockerQuery) encode() string {
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.Location != "" {
		values.Set("location", q.Location)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func (c *Client) Lockers(ctx context.Context, query LockerQuery) ([]Locker, error) {
	var out []Locker
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/lockers" + query.encode(), authed: true}, &out)
	return out, err
}

func (c *Client) AvailableLockers(ctx context.Context) ([]Locker, error) {
	var out []Locker
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/lockers/available", authed: true}, &out)
	return out, err
}

func (c *Client) Locker(ctx context.Context, id string) (Locker, error) {
	var out Locker
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/lockers/" + url.PathEscape(id), authed: true}, &out)
	return out, err
}

func (c *Client) CreateLocker(ctx context.Context, number, location string) (Locker, error) {
	var out Locker
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/lockers",
		body:   map[string]string{"locker_number": number, "location": location},
		authed: true,
	}, &out)
	return out, err
}

func (c *Client) UpdateLocker(ctx context.Context, id, number, location string) (Locker, error) {
	var out Locker
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/api/lockers/" + url.PathEscape(id),
		body:   map[string]string{"locker_number": number, "location": location},
		authed: true,
	}, &out)
	return out, err
}

func (c *Client) DeactivateLocker(ctx context.Context, id string) (Deactivation, error) {
	var out Deactivation
	err := c.do(ctx, request{method: http.MethodDelete, path: "/api/lockers/" + url.PathEscape(id), authed: true}, &out)
	return out, err
}

func (c *Client) ReactivateLocker(ctx context.Context, id string) (Locker, error) {
	var out Locker
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/lockers/" + url.PathEscape(id) + "/reactivate",
		authed: true,
	}, &out)
	return out, err
}

// Unlock needs no session; the PIN is the credential.
func (c *Client) Unlock(ctx context.Context, number, pin string) (UnlockResult, error) {
	var out UnlockResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/lockers/unlock",
		body:   map[string]string{"locker_number": number, "access_pin": pin},
	}, &out)
	return out, err
}

func (c *Client) Reservations(ctx context.Context) ([]Reservation, error) {
	return c.listReservations(ctx, "/api/reservations")
}

func (c *Client) ActiveReservations(ctx context.Context) ([]Reservation, error) {
	return c.listReservations(ctx, "/api/reservations/active")
}

func (c *Client) AllReservations(ctx context.Context) ([]Reservation, error) {
	return c.listReservations(ctx, "/api/reservations/all")
}

func (c *Client) listReservations(ctx context.Context, path string) ([]Reservation, error) {
	var out []Reservation
	err := c.do(ctx, request{method: http.MethodGet, path: path, authed: true}, &out)
	return out, err
}

func (c *Client) Reservation(ctx context.Context, id string) (Reservation, error) {
	var out Reservation
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/reservations/" + url.PathEscape(id), authed: true}, &out)
	return out, err
}

func (c *Client) Reserve(ctx context.Context, lockerID string, until time.Time) (Reservation, error) {
	var out Reservation
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/reservations",
		body:   map[string]any{"locker": lockerID, "reserved_until": until.UTC()},
		authed: true,
	}, &out)
	return out, err
}

func (c *Client) Release(ctx context.Context, id string) (Reservation, error) {
	var out Reservation
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/api/reservations/" + url.PathEscape(id) + "/release",
		authed: true,
	}, &out)
	return out, err
}

func (c *Client) UpdateWindow(ctx context.Context, id string, until time.Time) (Reservation, error) {
	var out Reservation
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/api/reservations/" + url.PathEscape(id),
		body:   map[string]any{"reserved_until": until.UTC()},
		authed: true,
	}, &out)
	return out, err
}
