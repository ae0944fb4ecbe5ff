package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lockerhub/internal/cache"
	"lockerhub/internal/config"
	"lockerhub/internal/database"
	"lockerhub/internal/handlers"
	"lockerhub/internal/jobs"
	"lockerhub/internal/log"
	"lockerhub/internal/queue"
	"lockerhub/internal/repository"
	"lockerhub/internal/repository/memory"
	"lockerhub/internal/security"
	"lockerhub/internal/server"
	"lockerhub/internal/service"
)

type stores struct {
	users        service.UserStore
	lockers      service.LockerStore
	reservations service.ReservationStore
	db           handlers.Pinger
	close        func()
}

func openStores(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (stores, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		mem := memory.New()
		return stores{
			users:        mem.Users,
			lockers:      mem.Lockers,
			reservations: mem.Reservations,
			close:        func() {},
		}, nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return stores{}, err
	}
	if cfg.Postgres.Migrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return stores{}, err
		}
	}

	return stores{
		users:        repository.NewUserRepository(pool),
		lockers:      repository.NewLockerRepository(pool),
		reservations: repository.NewReservationRepository(pool),
		db:           pool,
		close:        pool.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	var events service.EventPublisher = service.NopPublisher
	if cfg.Events.Enabled {
		events = queue.NewPublisher(redisClient, cfg.Events.Stream, cfg.Events.MaxLen)
	}

	secret := cfg.Security.JWTAccessSecret
	if secret == "" {
		// Only reachable in development; Validate rejects it elsewhere.
		secret, _, err = security.GenerateRefreshToken(32)
		if err != nil {
			logger.Fatal().Err(err).Msg("generate development secret")
		}
		logger.Warn().Msg("no jwt secret configured; using an ephemeral one")
	}
	tokens, err := security.NewTokenCodec(secret, cfg.Security.JWTAccessTTL, cfg.Security.JWTIssuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid jwt settings")
	}

	authService := service.NewAuthService(
		st.users,
		cache.NewRefreshStore(redisClient),
		tokens,
		security.NewPasswordHasher(security.DefaultArgon2Params),
		cfg.Security,
		logger,
	)
	lockerService := service.NewLockerService(st.lockers, st.reservations, events, logger)
	reservationService := service.NewReservationService(
		st.lockers,
		st.reservations,
		cache.NewUnlockLimiter(redisClient, cfg.Unlock.MaxAttempts, cfg.Unlock.Window),
		events,
		cfg.Reservations,
		logger,
	)

	if cfg.Security.AdminUsername != "" {
		if err := authService.EnsureAdmin(ctx, service.RegisterInput{
			Username: cfg.Security.AdminUsername,
			Email:    cfg.Security.AdminEmail,
			Password: cfg.Security.AdminPassword,
		}); err != nil {
			logger.Fatal().Err(err).Msg("ensure admin user")
		}
	}

	handlerSet, err := handlers.NewHandlerSet(
		logger,
		cfg,
		authService,
		lockerService,
		reservationService,
		st.db,
		cache.Pinger{Client: redisClient},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("init handlers")
	}
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(reservationService, cfg.Jobs.ExpirySchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, st, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, st stores, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	scheduler.Stop()

	st.close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
