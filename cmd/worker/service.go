package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/notifier"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

const (
	heartbeatInterval = 30 * time.Second
)

type pinger interface {
	Ping(context.Context) error
}

type handler interface {
	Handle(ctx context.Context, msg notifier.Inbound) notifier.Result
}

type ServiceParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	Source    notifier.Source
	Processor handler
	// Dependencies are pinged before the source starts receiving.
	Dependencies map[string]pinger
	// Metrics, when set, is served on the app port at /metrics.
	Metrics http.Handler
}

type Service struct {
	cfg       *config.Config
	logg      *logger.Logger
	source    notifier.Source
	processor handler
	deps      map[string]pinger
	metrics   http.Handler
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Source == nil {
		return nil, errors.New("order events source is required")
	}
	if params.Processor == nil {
		return nil, errors.New("notifier processor is required")
	}
	return &Service{
		cfg:       params.Config,
		logg:      params.Logger,
		source:    params.Source,
		processor: params.Processor,
		deps:      params.Dependencies,
		metrics:   params.Metrics,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, dep := range s.deps {
		if dep == nil {
			continue
		}
		if err := pingDependency(ctx, s.logg, name, dep.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.source.Run(ctx, s.processor.Handle)
	}()

	if s.metrics != nil && s.cfg.App.Port != "" {
		go func() {
			if err := metrics.Serve(ctx, ":"+s.cfg.App.Port, s.metrics, s.logg); err != nil {
				errCh <- err
			}
		}()
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "order events consumer stopped unexpectedly", err)
				return err
			}
			return err
		case <-ticker.C:
			s.logg.Debug(ctx, "worker.heartbeat")
		}
	}
}
