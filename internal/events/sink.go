package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
	"github.com/segmentio/kafka-go"
)

// Sink delivers serialized messages to the order-events queue.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
	Close() error
}

// LogSink writes messages to the structured log only.
type LogSink struct {
	logg *logger.Logger
}

func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(ctx context.Context, msg Message) error {
	if s.logg == nil {
		return nil
	}
	fields := map[string]any{
		AttrEventID:     msg.EventID,
		AttrEventType:   msg.EventType,
		AttrOrderNumber: msg.OrderNumber,
		"bytes":         len(msg.Body),
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "order event emitted")
	return nil
}

func (s *LogSink) Close() error { return nil }

// RedisSink pushes envelopes onto a Redis list consumed with BRPOP.
type RedisSink struct {
	queue pkgredis.Queue
	name  string
}

func NewRedisSink(queue pkgredis.Queue, name string) (*RedisSink, error) {
	if queue == nil {
		return nil, errors.New("redis queue required")
	}
	if name == "" {
		return nil, errors.New("queue name required")
	}
	return &RedisSink{queue: queue, name: name}, nil
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, msg Message) error {
	if err := s.queue.PushQueue(ctx, s.name, msg.Body); err != nil {
		return fmt.Errorf("push %s: %w", s.name, err)
	}
	return nil
}

func (s *RedisSink) Close() error { return nil }

type publishResult interface {
	Get(context.Context) (string, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Stop()
}

// PubSubSink publishes to the order-events topic and waits for the server ack.
type PubSubSink struct {
	publisher topicPublisher
}

func NewPubSubSink(p *gcppubsub.Publisher) (*PubSubSink, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &PubSubSink{publisher: &gcpPublisher{Publisher: p}}, nil
}

func (s *PubSubSink) Name() string { return "pubsub" }

func (s *PubSubSink) Send(ctx context.Context, msg Message) error {
	result := s.publisher.Publish(ctx, &gcppubsub.Message{
		Data:       msg.Body,
		Attributes: msg.Attributes(),
	})
	if result == nil {
		return errors.New("publish result is nil")
	}
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("pubsub publish: %w", err)
	}
	return nil
}

func (s *PubSubSink) Close() error {
	s.publisher.Stop()
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes one record per message keyed by order number.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(writer messageWriter) (*KafkaSink, error) {
	if writer == nil {
		return nil, errors.New("kafka writer required")
	}
	return &KafkaSink{writer: writer}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, msg Message) error {
	headers := make([]kafka.Header, 0, 3)
	for k, v := range msg.Attributes() {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	record := kafka.Message{
		Key:     []byte(msg.OrderNumber),
		Value:   msg.Body,
		Headers: headers,
		Time:    time.Now().UTC(),
	}
	if err := s.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.writer.Close() }
