package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/internal/cron"
	"github.com/angelmondragon/storefront-checkout/internal/notifier"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

const serviceKind = "cron-worker"

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
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
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

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("retention:"+lockEnv(cfg.App.Env)), cfg.Retention.LockTTL)
	if err != nil {
		return err
	}

	jobs, err := retentionJobs(cfg.Retention, dbClient, logg)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     jobs,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(promRegistry),
		Interval: cfg.Retention.Interval,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"jobs":        service.JobNames(),
	})
	logg.Info(ctx, "starting cron worker")

	metricsErr := make(chan error, 1)
	go func() {
		err := metrics.Serve(ctx, ":"+cfg.App.Port, promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}), logg)
		if err != nil {
			stop()
		}
		metricsErr <- err
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err := <-metricsErr; err != nil {
		return err
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

func retentionJobs(cfg config.RetentionConfig, dbClient *db.Client, logg *logger.Logger) ([]cron.Job, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())
	dlqRepo := outbox.NewDLQRepository(dbClient.DB())

	params := []cron.RetentionJobParams{
		{Name: cron.JobOutboxRetention, Keep: cfg.OutboxPublished, Prune: outboxRepo.DeletePublishedBefore},
		{Name: cron.JobDLQRetention, Keep: cfg.OutboxDLQ, Prune: dlqRepo.DeleteFailedBefore},
		{Name: cron.JobEmailLogRetention, Keep: cfg.EmailLogs, Prune: notifier.DeleteEmailLogsBefore},
	}

	jobs := make([]cron.Job, 0, len(params))
	for _, p := range params {
		p.Logger = logg
		p.DB = dbClient
		job, err := cron.NewRetentionJob(p)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
