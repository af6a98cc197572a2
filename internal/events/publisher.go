package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
)

type deliveryRecorder interface {
	Record(ctx context.Context, d outbox.Delivery) error
}

// Publisher sends OrderCreated after commit and records each delivery for redelivery.
type Publisher struct {
	sink     Sink
	recorder deliveryRecorder
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

type PublisherParams struct {
	Sink     Sink
	Recorder deliveryRecorder
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.Sink == nil {
		return nil, errors.New("event sink required")
	}
	return &Publisher{
		sink:     params.Sink,
		recorder: params.Recorder,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// PublishOrderCreated returns the sink error; recording failures are only logged.
func (p *Publisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	msg, env, err := NewOrderCreatedMessage(order)
	if err != nil {
		return fmt.Errorf("build order event: %w", err)
	}

	sendErr := p.sink.Send(ctx, msg)
	p.metrics.IncEventPublished(p.sink.Name(), sendErr == nil)

	if p.recorder != nil {
		recordErr := p.recorder.Record(context.WithoutCancel(ctx), outbox.Delivery{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Envelope:      env,
			Err:           sendErr,
		})
		if recordErr != nil && p.logg != nil {
			p.logg.Error(p.logg.WithOrderNumber(ctx, order.OrderNumber), "failed to record order event delivery", recordErr)
		}
	}
	return sendErr
}

// Redeliver sends a previously recorded message through the same sink.
func (p *Publisher) Redeliver(ctx context.Context, msg Message) error {
	err := p.sink.Send(ctx, msg)
	p.metrics.IncEventPublished(p.sink.Name(), err == nil)
	return err
}

func (p *Publisher) SinkName() string { return p.sink.Name() }

func (p *Publisher) Close() error { return p.sink.Close() }
