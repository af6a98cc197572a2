package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/internal/events"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

const serviceKind = "outbox-publisher"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	deps := map[string]pinger{}
	var queue redis.Queue
	if cfg.Events.Sink == config.SinkRedis {
		redisClient, dialErr := redis.New(bootCtx, cfg.Redis, logg)
		if dialErr != nil {
			return dialErr
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
		queue = redisClient
		deps["redis"] = redisClient
	}

	sinkDeps, closeSinkDeps, err := events.OpenSinkDeps(bootCtx, cfg, queue, logg)
	defer func() { err = multierr.Append(err, closeSinkDeps()) }()
	if err != nil {
		return err
	}
	if sinkDeps.PubSub != nil {
		deps["pubsub"] = sinkDeps.PubSub
	}

	sink, err := events.NewSink(cfg.Events, sinkDeps)
	if err != nil {
		return err
	}
	publisher, err := events.NewPublisher(events.PublisherParams{Sink: sink, Logger: logg})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, publisher.Close()) }()

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Publisher:     publisher,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      registry.New(),
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Dependencies:  deps,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"event_sink":  publisher.SinkName(),
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
	return nil
}
