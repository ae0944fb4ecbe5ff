package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"lockerhub/internal/cache"
	"lockerhub/internal/config"
	"lockerhub/internal/repository/memory"
	"lockerhub/internal/security"
	"lockerhub/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTAccessSecret: "handler-test-secret-0123456789",
			JWTAccessTTL:    time.Hour,
			JWTRefreshTTL:   24 * time.Hour,
			JWTIssuer:       "lockerhub",
			RefreshGrace:    30 * time.Second,
		},
		Reservations: config.ReservationsConfig{MinLeadTime: 5 * time.Minute},
		Unlock:       config.UnlockConfig{MaxAttempts: 5, Window: 15 * time.Minute},
	}
	log := zerolog.Nop()
	store := memory.New()

	codec, err := security.NewTokenCodec(cfg.Security.JWTAccessSecret, cfg.Security.JWTAccessTTL, cfg.Security.JWTIssuer)
	require.NoError(t, err)
	hasher := security.NewPasswordHasher(security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

	auth := service.NewAuthService(store.Users, cache.NewRefreshStore(client), codec, hasher, cfg.Security, log)
	lockers := service.NewLockerService(store.Lockers, store.Reservations, service.NopPublisher, log)
	reservations := service.NewReservationService(
		store.Lockers, store.Reservations,
		cache.NewUnlockLimiter(client, cfg.Unlock.MaxAttempts, cfg.Unlock.Window),
		service.NopPublisher, cfg.Reservations, log,
	)

	require.NoError(t, auth.EnsureAdmin(context.Background(), service.RegisterInput{
		Username: "root",
		Password: "admin-password",
	}))

	h, err := NewHandlerSet(log, cfg, auth, lockers, reservations, nil, cache.Pinger{Client: client})
	require.NoError(t, err)

	router := gin.New()
	h.Register(router.Group("/api"))
	return &testAPI{t: t, router: router}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	return a.doFrom("", method, path, token, body)
}

// doFrom sends the request from remoteAddr, or the httptest default when empty.
func (a *testAPI) doFrom(remoteAddr, method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, w)["error"].(string)
}

func (a *testAPI) login(username, password string) map[string]string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decode[map[string]string](a.t, w)
}

func (a *testAPI) registerUser(username string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password-123",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return a.login(username, "password-123")["access"]
}

func (a *testAPI) createLocker(adminToken, number string) lockerResponse {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/lockers", adminToken, gin.H{"locker_number": number, "location": "Lobby"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[lockerResponse](a.t, w)
}

func TestAuthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "password": "short"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation_failed", errorCode(t, w))
	require.Contains(t, decode[map[string]any](t, w)["message"], "password")

	access := api.registerUser("alice")

	w = api.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "password": "password-123"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "username_taken", errorCode(t, w))

	w = api.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_credentials", errorCode(t, w))

	w = api.do(http.MethodGet, "/api/auth/me", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[userResponse](t, w)
	require.Equal(t, "alice", me.Username)
	require.Equal(t, "user", me.Role)

	pair := api.login("alice", "password-123")
	w = api.do(http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh": pair["refresh"]})
	require.Equal(t, http.StatusOK, w.Code)
	next := decode[map[string]string](t, w)
	require.NotEmpty(t, next["access"])
	require.NotEqual(t, pair["refresh"], next["refresh"])

	w = api.do(http.MethodPost, "/api/auth/logout", "", gin.H{"refresh": next["refresh"]})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh": next["refresh"]})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_refresh_token", errorCode(t, w))

	w = api.do(http.MethodGet, "/api/auth/me", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "token_malformed", errorCode(t, w))
}

func TestLockerEndpoints(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("root", "admin-password")["access"]
	user := api.registerUser("alice")

	w := api.do(http.MethodPost, "/api/lockers", user, gin.H{"locker_number": "A1", "location": "Lobby"})
	require.Equal(t, http.StatusForbidden, w.Code)

	a1 := api.createLocker(admin, "A1")
	require.Equal(t, "available", a1.Status)

	w = api.do(http.MethodPost, "/api/lockers", admin, gin.H{"locker_number": "A1", "location": "Roof"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "locker_number_taken", errorCode(t, w))

	w = api.do(http.MethodPatch, "/api/lockers/"+a1.ID, admin, gin.H{"location": "Roof"})
	require.Equal(t, http.StatusOK, w.Code)
	patched := decode[lockerResponse](t, w)
	require.Equal(t, "A1", patched.LockerNumber)
	require.Equal(t, "Roof", patched.Location)

	w = api.do(http.MethodGet, "/api/lockers?status=available", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]lockerResponse](t, w), 1)

	w = api.do(http.MethodGet, "/api/lockers/"+a1.ID, user, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/api/lockers/missing", user, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodDelete, "/api/lockers/"+a1.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 0, decode[map[string]any](t, w)["released_reservations"])

	w = api.do(http.MethodGet, "/api/lockers/available", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode[[]lockerResponse](t, w))

	w = api.do(http.MethodPost, "/api/lockers/"+a1.ID+"/reactivate", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "available", decode[lockerResponse](t, w).Status)

	w = api.do(http.MethodPost, "/api/lockers/"+a1.ID+"/reactivate", admin, nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestReservationFlow(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("root", "admin-password")["access"]
	alice := api.registerUser("alice")
	bob := api.registerUser("bob")
	a1 := api.createLocker(admin, "A1")

	until := time.Now().Add(2 * time.Hour).UTC()

	w := api.do(http.MethodPost, "/api/reservations", admin, gin.H{"locker": a1.ID, "reserved_until": until})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/api/reservations", alice, gin.H{"locker": a1.ID, "reserved_until": time.Now().Add(-time.Second)})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_window", errorCode(t, w))

	w = api.do(http.MethodPost, "/api/reservations", alice, gin.H{"locker": a1.ID, "reserved_until": until})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reservation := decode[reservationResponse](t, w)
	require.Len(t, reservation.AccessPIN, 6)
	require.NotNil(t, reservation.LockerDetails)
	require.Equal(t, "A1", reservation.LockerDetails.LockerNumber)
	require.Equal(t, "reserved", reservation.LockerDetails.Status)

	w = api.do(http.MethodPost, "/api/reservations", bob, gin.H{"locker": a1.ID, "reserved_until": until})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "locker_not_available", errorCode(t, w))

	w = api.do(http.MethodGet, "/api/reservations/"+reservation.ID, bob, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "not_owner", errorCode(t, w))

	w = api.do(http.MethodGet, "/api/reservations/active", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]reservationResponse](t, w), 1)

	w = api.do(http.MethodGet, "/api/reservations", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode[[]reservationResponse](t, w))

	w = api.do(http.MethodGet, "/api/reservations/all", bob, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, "/api/reservations/all", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]reservationResponse](t, w), 1)

	later := until.Add(time.Hour)
	w = api.do(http.MethodPatch, "/api/reservations/"+reservation.ID, admin, gin.H{"reserved_until": later})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[reservationResponse](t, w)
	require.True(t, later.Equal(updated.ReservedUntil))
	require.Equal(t, reservation.AccessPIN, updated.AccessPIN)

	w = api.do(http.MethodPatch, "/api/reservations/"+reservation.ID, alice, gin.H{"reserved_until": later})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/api/lockers/unlock", "", gin.H{"locker_number": "A1", "access_pin": reservation.AccessPIN})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	unlocked := decode[map[string]any](t, w)
	require.Equal(t, "locker A1 unlocked", unlocked["message"])
	require.NotContains(t, unlocked["reservation"], "access_pin")

	w = api.do(http.MethodPut, "/api/reservations/"+reservation.ID+"/release", bob, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPut, "/api/reservations/"+reservation.ID+"/release", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	released := decode[reservationResponse](t, w)
	require.False(t, released.IsActive)
	require.NotNil(t, released.ReleasedAt)
	require.Equal(t, "available", released.LockerDetails.Status)

	w = api.do(http.MethodPatch, "/api/reservations/"+reservation.ID+"/release", alice, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "already_released", errorCode(t, w))

	w = api.do(http.MethodPost, "/api/lockers/unlock", "", gin.H{"locker_number": "A1", "access_pin": reservation.AccessPIN})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "pin_mismatch", errorCode(t, w))
}

func TestUnlockValidationAndLimit(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/lockers/unlock", "", gin.H{"locker_number": "A1", "access_pin": "12ab56"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decode[map[string]any](t, w)["message"], "access_pin")

	for i := 0; i < 5; i++ {
		w = api.do(http.MethodPost, "/api/lockers/unlock", "", gin.H{"locker_number": "Z9", "access_pin": "123456"})
		require.Equal(t, http.StatusForbidden, w.Code)
	}
	w = api.do(http.MethodPost, "/api/lockers/unlock", "", gin.H{"locker_number": "Z9", "access_pin": "123456"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "too_many_attempts", errorCode(t, w))
}

func TestUnlockLimitIsPerCaller(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("root", "admin-password")["access"]
	alice := api.registerUser("alice")
	a1 := api.createLocker(admin, "A1")

	w := api.do(http.MethodPost, "/api/reservations", alice, gin.H{"locker": a1.ID, "reserved_until": time.Now().Add(2 * time.Hour).UTC()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reservation := decode[reservationResponse](t, w)

	wrong := "000000"
	if reservation.AccessPIN == wrong {
		wrong = "111111"
	}
	const guesser = "198.51.100.9:5000"
	for i := 0; i < 5; i++ {
		w = api.doFrom(guesser, http.MethodPost, "/api/lockers/unlock", "", gin.H{"locker_number": "A1", "access_pin": wrong})
		require.Equal(t, http.StatusForbidden, w.Code)
	}
	w = api.doFrom(guesser, http.MethodPost, "/api/lockers/unlock", "", gin.H{"locker_number": "A1", "access_pin": reservation.AccessPIN})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	w = api.doFrom("203.0.113.20:6000", http.MethodPost, "/api/lockers/unlock", "", gin.H{"locker_number": "A1", "access_pin": reservation.AccessPIN})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[healthResponse](t, w)
	require.Equal(t, "disabled", health.Database)
	require.Equal(t, "ok", health.Cache)

	h := HandlerSet{log: zerolog.Nop(), cfg: &config.AppConfig{}, database: failingPinger{}}
	router := gin.New()
	router.GET("/healthz", h.Health)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
