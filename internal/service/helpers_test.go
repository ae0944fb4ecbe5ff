package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"lockerhub/internal/cache"
	"lockerhub/internal/config"
	"lockerhub/internal/models"
	"lockerhub/internal/repository/memory"
	"lockerhub/internal/security"
)

const testSecret = "service-test-secret-0123456789"

var testArgon2 = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	mr           *miniredis.Miniredis
	redis        *redis.Client
	store        *memory.Store
	clock        *testClock
	events       *recordingPublisher
	tokens       *security.TokenCodec
	auth         *AuthService
	lockers      *LockerService
	reservations *ReservationService
}

func securityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		JWTAccessSecret: testSecret,
		JWTAccessTTL:    time.Hour,
		JWTRefreshTTL:   7 * 24 * time.Hour,
		JWTIssuer:       "lockerhub",
		RefreshGrace:    30 * time.Second,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{
		mr:     mr,
		redis:  client,
		store:  memory.New(),
		clock:  newTestClock(),
		events: &recordingPublisher{},
	}

	cfg := securityConfig()
	codec, err := security.NewTokenCodec(cfg.JWTAccessSecret, cfg.JWTAccessTTL, cfg.JWTIssuer)
	require.NoError(t, err)
	h.tokens = codec.WithClock(h.clock.Now)

	h.auth = h.newAuthService(cfg)
	h.lockers = NewLockerService(h.store.Lockers, h.store.Reservations, h.events, zerolog.Nop()).
		WithClock(h.clock.Now)
	h.reservations = NewReservationService(
		h.store.Lockers,
		h.store.Reservations,
		cache.NewUnlockLimiter(client, 5, 15*time.Minute),
		h.events,
		config.ReservationsConfig{MinLeadTime: 5 * time.Minute},
		zerolog.Nop(),
	).WithClock(h.clock.Now)
	return h
}

// newAuthService builds another session manager over the same stores, the
// way a second API process would see them.
func (h *harness) newAuthService(cfg config.SecurityConfig) *AuthService {
	return NewAuthService(
		h.store.Users,
		cache.NewRefreshStore(h.redis),
		h.tokens,
		security.NewPasswordHasher(testArgon2),
		cfg,
		zerolog.Nop(),
	).WithClock(h.clock.Now)
}

func (h *harness) locker(t *testing.T, number string) models.Locker {
	t.Helper()
	locker, err := h.lockers.Create(context.Background(), LockerInput{Number: number, Location: "Lobby"})
	require.NoError(t, err)
	return locker
}

func userIdentity(id string) Identity {
	return Identity{UserID: id, Username: id, Role: models.RoleUser}
}

func adminIdentity() Identity {
	return Identity{UserID: "admin", Username: "admin", IsStaff: true, Role: models.RoleAdmin}
}

const terminalAddr = "10.0.0.1"

func (h *harness) unlock(ctx context.Context, number, pin string) (UnlockResult, error) {
	return h.unlockFrom(ctx, terminalAddr, number, pin)
}

func (h *harness) unlockFrom(ctx context.Context, caller, number, pin string) (UnlockResult, error) {
	return h.reservations.VerifyUnlock(ctx, UnlockInput{Caller: caller, Number: number, PIN: pin})
}
