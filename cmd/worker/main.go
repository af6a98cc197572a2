package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/internal/notifier"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/instance"
	pkgkafka "github.com/angelmondragon/storefront-checkout/pkg/kafka"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/registry"
	pkgpubsub "github.com/angelmondragon/storefront-checkout/pkg/pubsub"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

const serviceKind = "email-notifier"

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
		logg.Error(context.Background(), "worker stopped unexpectedly", err)
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

	// Processed event ids live in Redis regardless of which sink carries the events.
	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	dedup, err := idempotency.NewDeduper(redisClient, cfg.Events.IdempotencyTTL)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	processor, err := notifier.NewProcessor(notifier.ProcessorParams{
		Repository:   notifier.NewRepository(dbClient.DB()),
		Sender:       notifier.NewLogSender(logg),
		Idempotency:  dedup,
		Decoders:     registry.New(),
		Metrics:      metrics.NewCheckoutMetrics(promRegistry),
		Logger:       logg,
		ConsumerName: cfg.Notifier.ConsumerName,
		FromAddress:  cfg.Notifier.FromAddress,
	})
	if err != nil {
		return err
	}

	deps := map[string]pinger{
		"database": dbClient,
		"redis":    redisClient,
	}
	source, closeSource, err := openSource(bootCtx, cfg, redisClient, deps, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeSource()) }()

	service, err := NewService(ServiceParams{
		Config:       cfg,
		Logger:       logg,
		Source:       source,
		Processor:    processor,
		Dependencies: deps,
		Metrics:      promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
		"event_sink":  cfg.Events.Sink,
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logg.Info(ctx, "worker shutting down gracefully")
	return nil
}

// openSource builds the order-events source matching the configured sink.
func openSource(ctx context.Context, cfg *config.Config, queue redis.Queue, deps map[string]pinger, logg *logger.Logger) (notifier.Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Events.Sink {
	case config.SinkRedis:
		source, err := notifier.NewRedisSource(queue, cfg.Events.Queue, logg)
		return source, noop, err
	case config.SinkPubSub:
		client, err := pkgpubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, noop, fmt.Errorf("pubsub: %w", err)
		}
		if err := client.CheckSubscription(ctx); err != nil {
			return nil, noop, multierr.Append(err, client.Close())
		}
		deps["pubsub"] = client
		source, err := notifier.NewPubSubSource(client.OrderEventsSubscriber())
		if err != nil {
			return nil, noop, multierr.Append(err, client.Close())
		}
		return source, client.Close, nil
	case config.SinkKafka:
		client, err := pkgkafka.NewClient(cfg.Kafka)
		if err != nil {
			return nil, noop, fmt.Errorf("kafka: %w", err)
		}
		// The source closes its reader when Run returns.
		source, err := notifier.NewKafkaSource(client.NewReader(), logg)
		return source, noop, err
	default:
		return nil, noop, fmt.Errorf("event sink %q has no consumer side; run the worker with redis, pubsub or kafka", cfg.Events.Sink)
	}
}
