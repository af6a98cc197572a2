// Package notifier turns OrderCreated messages into order confirmation emails.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/registry"
)

const msgMissingRecipient = "Missing recipient email on OrderCreated payload."

// Consumer outcome labels.
const (
	outcomeSent      = "sent"
	outcomeFailed    = "failed"
	outcomeDuplicate = "duplicate"
	outcomeSkipped   = "skipped"
	outcomeMalformed = "malformed"
	outcomeRetry     = "retry"
)

type decoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

// Inbound is a message received from any order-events source.
type Inbound struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Result tells the source whether to acknowledge the message.
type Result struct {
	Ack     bool
	Outcome string
}

// Processor writes one email log per OrderCreated event id.
type Processor struct {
	repo        Repository
	sender      Sender
	idempotency *idempotency.Deduper
	decoders    decoder
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
	consumer    string
	from        string
	now         func() time.Time
}

type ProcessorParams struct {
	Repository   Repository
	Sender       Sender
	Idempotency  *idempotency.Deduper
	Decoders     decoder
	Metrics      *metrics.CheckoutMetrics
	Logger       *logger.Logger
	ConsumerName string
	FromAddress  string
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("email log repository required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("sender required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := params.Decoders
	if decoders == nil {
		decoders = registry.New()
	}
	name := strings.TrimSpace(params.ConsumerName)
	if name == "" {
		name = "email-notifier"
	}
	return &Processor{
		repo:        params.Repository,
		sender:      params.Sender,
		idempotency: params.Idempotency,
		decoders:    decoders,
		metrics:     params.Metrics,
		logg:        params.Logger,
		consumer:    name,
		from:        params.FromAddress,
		now:         time.Now,
	}, nil
}

// Handle processes one message. Only storage and dedup failures ask for redelivery.
func (p *Processor) Handle(ctx context.Context, msg Inbound) Result {
	res := p.handle(ctx, msg)
	p.metrics.IncEventConsumed(res.Outcome)
	return res
}

func (p *Processor) handle(ctx context.Context, msg Inbound) Result {
	eventType := msg.Attributes["event_type"]
	logCtx := p.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != "" && eventType != string(enums.EventOrderCreated) {
		p.logg.Info(logCtx, "skipping non order event")
		return Result{Ack: true, Outcome: outcomeSkipped}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		p.logg.Error(logCtx, "failed to decode envelope", err)
		return Result{Ack: true, Outcome: outcomeMalformed}
	}
	eventID := envelope.EventUUID()
	logCtx = p.logg.WithField(logCtx, "event_id", envelope.EventID)

	decoded, err := p.decoders.Decode(enums.EventOrderCreated, envelope.Version, envelope.Data)
	if err != nil {
		p.logg.Error(logCtx, "failed to parse payload", err)
		return Result{Ack: true, Outcome: outcomeMalformed}
	}
	event, ok := decoded.(*payloads.OrderCreatedEvent)
	if !ok {
		p.logg.Warn(logCtx, "unexpected payload type")
		return Result{Ack: true, Outcome: outcomeMalformed}
	}
	logCtx = p.logg.WithOrderNumber(logCtx, event.OrderNumber)

	first, err := p.idempotency.Claim(ctx, p.consumer, eventID)
	if err != nil {
		p.logg.Error(logCtx, "idempotency check failed", err)
		return Result{Ack: false, Outcome: outcomeRetry}
	}
	if !first {
		p.logg.Info(logCtx, "event already processed")
		return Result{Ack: true, Outcome: outcomeDuplicate}
	}

	entry := p.buildLog(ctx, envelope, event)
	if err := p.repo.Create(ctx, entry); err != nil {
		p.logg.Error(logCtx, "failed to write email log", err)
		_ = p.idempotency.Release(ctx, p.consumer, eventID)
		return Result{Ack: false, Outcome: outcomeRetry}
	}

	if entry.Status == enums.EmailStatusFailed {
		p.logg.Warn(p.logg.WithField(logCtx, "error", *entry.ErrorMessage), "order confirmation not sent")
		return Result{Ack: true, Outcome: outcomeFailed}
	}
	p.logg.Info(logCtx, "order confirmation sent")
	return Result{Ack: true, Outcome: outcomeSent}
}

func (p *Processor) buildLog(ctx context.Context, envelope outbox.PayloadEnvelope, event *payloads.OrderCreatedEvent) *models.EmailLog {
	eventID := envelope.EventUUID()
	orderNumber := event.OrderNumber
	subject := confirmationSubject(orderNumber)
	entry := &models.EmailLog{
		EventID:     &eventID,
		Type:        enums.EmailTypeOrderConfirmation,
		OrderNumber: &orderNumber,
		Subject:     &subject,
		Payload:     envelope.Data,
	}

	recipient := strings.TrimSpace(event.Email)
	if recipient == "" {
		msg := msgMissingRecipient
		entry.Status = enums.EmailStatusFailed
		entry.ErrorMessage = &msg
		return entry
	}
	entry.Recipient = &recipient

	err := p.sender.Send(ctx, Email{
		From:    p.from,
		To:      recipient,
		Subject: subject,
		Body:    renderConfirmation(event),
	})
	if err != nil {
		msg := err.Error()
		entry.Status = enums.EmailStatusFailed
		entry.ErrorMessage = &msg
		return entry
	}
	sentAt := p.now().UTC()
	entry.Status = enums.EmailStatusSent
	entry.SentAt = &sentAt
	return entry
}
