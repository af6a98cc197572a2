package events

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgkafka "github.com/angelmondragon/storefront-checkout/pkg/kafka"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgpubsub "github.com/angelmondragon/storefront-checkout/pkg/pubsub"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// SinkDeps carries the clients a sink may need; only the selected sink's client must be set.
type SinkDeps struct {
	Redis  pkgredis.Queue
	PubSub *pkgpubsub.Client
	Kafka  *pkgkafka.Client
	Logger *logger.Logger
}

// NewSink builds the sink selected by the events config.
func NewSink(cfg config.EventsConfig, deps SinkDeps) (Sink, error) {
	switch cfg.Sink {
	case "", config.SinkLog:
		return NewLogSink(deps.Logger), nil
	case config.SinkRedis:
		sink, err := NewRedisSink(deps.Redis, cfg.Queue)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case config.SinkPubSub:
		if deps.PubSub == nil {
			return nil, fmt.Errorf("pubsub client required for %s sink", cfg.Sink)
		}
		sink, err := NewPubSubSink(deps.PubSub.OrderEventsPublisher())
		if err != nil {
			return nil, err
		}
		return sink, nil
	case config.SinkKafka:
		if deps.Kafka == nil {
			return nil, fmt.Errorf("kafka client required for %s sink", cfg.Sink)
		}
		sink, err := NewKafkaSink(deps.Kafka.NewWriter())
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unsupported event sink %q", cfg.Sink)
	}
}

// OpenSinkDeps dials the broker client the configured sink needs. The returned
// close func releases whatever was opened.
func OpenSinkDeps(ctx context.Context, cfg *config.Config, redis pkgredis.Queue, logg *logger.Logger) (SinkDeps, func() error, error) {
	deps := SinkDeps{Redis: redis, Logger: logg}
	var closers []func() error
	closeAll := func() error {
		var err error
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
		return err
	}

	switch cfg.Events.Sink {
	case config.SinkPubSub:
		client, err := pkgpubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return SinkDeps{}, closeAll, fmt.Errorf("pubsub: %w", err)
		}
		deps.PubSub = client
		closers = append(closers, client.Close)
	case config.SinkKafka:
		client, err := pkgkafka.NewClient(cfg.Kafka)
		if err != nil {
			return SinkDeps{}, closeAll, fmt.Errorf("kafka: %w", err)
		}
		deps.Kafka = client
	}
	return deps, closeAll, nil
}
