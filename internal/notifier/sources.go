package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
	"github.com/segmentio/kafka-go"
)

const (
	defaultPopWait    = 5 * time.Second
	maxKafkaAttempts  = 3
	kafkaRetryBackoff = 500 * time.Millisecond
)

// Handler processes one inbound message.
type Handler func(ctx context.Context, msg Inbound) Result

// Source feeds order-events messages to a handler until ctx is done.
type Source interface {
	Run(ctx context.Context, handle Handler) error
}

// PubSubSource receives from the order-events subscription.
type PubSubSource struct {
	sub *gcppubsub.Subscriber
}

func NewPubSubSource(sub *gcppubsub.Subscriber) (*PubSubSource, error) {
	if sub == nil {
		return nil, errors.New("order events subscription required")
	}
	return &PubSubSource{sub: sub}, nil
}

func (s *PubSubSource) Run(ctx context.Context, handle Handler) error {
	return s.sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		res := handle(ctx, Inbound{ID: msg.ID, Data: msg.Data, Attributes: msg.Attributes})
		if !res.Ack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// RedisSource pops the order-events list; rejected messages are pushed back for another pass.
type RedisSource struct {
	queue pkgredis.Queue
	name  string
	wait  time.Duration
	logg  *logger.Logger
}

func NewRedisSource(queue pkgredis.Queue, name string, logg *logger.Logger) (*RedisSource, error) {
	if queue == nil {
		return nil, errors.New("redis queue required")
	}
	if name == "" {
		return nil, errors.New("queue name required")
	}
	return &RedisSource{queue: queue, name: name, wait: defaultPopWait, logg: logg}, nil
}

func (s *RedisSource) Run(ctx context.Context, handle Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := s.queue.PopQueue(ctx, s.name, s.wait)
		if errors.Is(err, pkgredis.ErrQueueEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("pop %s: %w", s.name, err)
		}
		if res := handle(ctx, Inbound{Data: body}); !res.Ack {
			if err := s.queue.PushQueue(context.WithoutCancel(ctx), s.name, body); err != nil && s.logg != nil {
				s.logg.Error(ctx, "failed to requeue order event", err)
			}
		}
	}
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource reads the order-events topic in a consumer group and commits after handling.
type KafkaSource struct {
	reader messageReader
	logg   *logger.Logger
}

func NewKafkaSource(reader messageReader, logg *logger.Logger) (*KafkaSource, error) {
	if reader == nil {
		return nil, errors.New("kafka reader required")
	}
	return &KafkaSource{reader: reader, logg: logg}, nil
}

func (s *KafkaSource) Run(ctx context.Context, handle Handler) error {
	defer s.reader.Close()
	for {
		record, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}
		msg := Inbound{
			ID:         record.Topic + "/" + strconv.Itoa(record.Partition) + "/" + strconv.FormatInt(record.Offset, 10),
			Data:       record.Value,
			Attributes: make(map[string]string, len(record.Headers)),
		}
		for _, h := range record.Headers {
			msg.Attributes[h.Key] = string(h.Value)
		}

		for attempt := 1; ; attempt++ {
			if handle(ctx, msg).Ack {
				break
			}
			if attempt >= maxKafkaAttempts {
				if s.logg != nil {
					s.logg.Warn(s.logg.WithField(ctx, "message_id", msg.ID), "order event dropped after retries")
				}
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(kafkaRetryBackoff * time.Duration(attempt)):
			}
		}
		if err := s.reader.CommitMessages(ctx, record); err != nil {
			return fmt.Errorf("kafka commit: %w", err)
		}
	}
}
