package client_test

import (
	"context"
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
	"lockerhub/internal/client"
	"lockerhub/internal/config"
	"lockerhub/internal/handlers"
	"lockerhub/internal/repository/memory"
	"lockerhub/internal/security"
	"lockerhub/internal/service"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTAccessSecret: "client-flow-secret-0123456789",
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

	auth := service.NewAuthService(store.Users, cache.NewRefreshStore(rdb), codec, hasher, cfg.Security, log)
	lockers := service.NewLockerService(store.Lockers, store.Reservations, service.NopPublisher, log)
	reservations := service.NewReservationService(
		store.Lockers, store.Reservations,
		cache.NewUnlockLimiter(rdb, cfg.Unlock.MaxAttempts, cfg.Unlock.Window),
		service.NopPublisher, cfg.Reservations, log,
	)
	require.NoError(t, auth.EnsureAdmin(context.Background(), service.RegisterInput{
		Username: "root",
		Password: "admin-password",
	}))

	h, err := handlers.NewHandlerSet(log, cfg, auth, lockers, reservations, nil, cache.Pinger{Client: rdb})
	require.NoError(t, err)

	router := gin.New()
	h.Register(router.Group("/api"))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestReserveUnlockDeactivateFlow(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	admin := client.New(srv.URL)
	require.NoError(t, admin.Login(ctx, "root", "admin-password"))

	locker, err := admin.CreateLocker(ctx, "A-01", "Lobby")
	require.NoError(t, err)
	require.Equal(t, "available", locker.Status)

	user := client.New(srv.URL)
	_, err = user.Register(ctx, "alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, user.Login(ctx, "alice", "correct-horse"))

	me, err := user.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "user", me.Role)

	available, err := user.AvailableLockers(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)

	reservation, err := user.Reserve(ctx, locker.ID, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, reservation.AccessPIN, 6)
	require.NotNil(t, reservation.LockerDetails)
	require.Equal(t, "reserved", reservation.LockerDetails.Status)

	terminal := client.New(srv.URL)
	unlocked, err := terminal.Unlock(ctx, "A-01", reservation.AccessPIN)
	require.NoError(t, err)
	require.Equal(t, reservation.ID, unlocked.Reservation.ID)
	require.Empty(t, unlocked.Reservation.AccessPIN)

	deactivated, err := admin.DeactivateLocker(ctx, locker.ID)
	require.NoError(t, err)
	require.Equal(t, 1, deactivated.Released)
	require.Equal(t, "inactive", deactivated.Locker.Status)

	_, err = terminal.Unlock(ctx, "A-01", reservation.AccessPIN)
	require.Equal(t, http.StatusForbidden, client.StatusOf(err))

	active, err := user.ActiveReservations(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestRefreshAgainstServer(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	login := client.New(srv.URL)
	require.NoError(t, login.Login(ctx, "root", "admin-password"))
	original := login.Session()

	// A garbage access token forces the silent refresh path.
	broken := original
	broken.AccessToken = "not-a-jwt"
	c := client.New(srv.URL, client.WithSession(broken))

	lockers, err := c.Lockers(ctx, client.LockerQuery{})
	require.NoError(t, err)
	require.Empty(t, lockers)
	require.NotEqual(t, original.RefreshToken, c.Session().RefreshToken)

	// The original access token stays valid until it expires.
	_, err = login.Me(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Logout(ctx))
	require.False(t, c.LoggedIn())
}
