package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"lockerhub/internal/cache"
	"lockerhub/internal/config"
	"lockerhub/internal/log"
	"lockerhub/internal/queue"
	"lockerhub/internal/storage"
	"lockerhub/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	archive, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ensure event bucket failed")
	}

	processor := tasks.NewProcessor(archive, logger)
	consumer := queue.NewConsumer(client, queue.ConsumerConfig{
		Stream:        cfg.Events.Stream,
		Group:         cfg.Events.Group,
		Consumer:      cfg.Events.Consumer,
		MinIdle:       cfg.Events.VisibilityTimeout,
		ClaimInterval: cfg.Events.ClaimInterval,
	}, logger, processor)

	done := make(chan error, 1)
	go func() {
		done <- consumer.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			logger.Warn().Msg("consumer did not stop in time")
		}
	}
}
