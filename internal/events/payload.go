// Package events builds OrderCreated messages and delivers them to the configured sink.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/registry"
)

// Message attribute keys shared by every sink and the notifier.
const (
	AttrEventID     = "event_id"
	AttrEventType   = "event_type"
	AttrOrderNumber = "order_number"
)

// BuildOrderCreated maps a committed order into the queue payload.
func BuildOrderCreated(order *models.Order) payloads.OrderCreatedEvent {
	event := payloads.OrderCreatedEvent{
		OrderNumber: order.OrderNumber,
		Email:       order.Email,
		Status:      order.Status.String(),
		Subtotal:    order.Subtotal.StringFixed(2),
		Tax:         order.Tax.StringFixed(2),
		Shipping:    order.Shipping.StringFixed(2),
		Total:       order.Total.StringFixed(2),
		Items:       make([]payloads.OrderCreatedItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, payloads.OrderCreatedItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductNameSnapshot,
			UnitPrice:   item.UnitPriceSnapshot.StringFixed(2),
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal.StringFixed(2),
		})
	}
	return event
}

// Message is one serialized envelope plus its routing attributes.
type Message struct {
	EventID     string
	EventType   enums.OutboxEventType
	OrderNumber string
	Body        []byte
}

func (m Message) Attributes() map[string]string {
	return map[string]string{
		AttrEventID:     m.EventID,
		AttrEventType:   string(m.EventType),
		AttrOrderNumber: m.OrderNumber,
	}
}

// NewOrderCreatedMessage wraps an order in a fresh envelope.
func NewOrderCreatedMessage(order *models.Order) (Message, outbox.PayloadEnvelope, error) {
	if order == nil {
		return Message{}, outbox.PayloadEnvelope{}, fmt.Errorf("order is required")
	}
	env, err := outbox.NewEnvelope(BuildOrderCreated(order), order.CreatedAt)
	if err != nil {
		return Message{}, outbox.PayloadEnvelope{}, err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Message{}, outbox.PayloadEnvelope{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return Message{
		EventID:     env.EventID,
		EventType:   enums.EventOrderCreated,
		OrderNumber: order.OrderNumber,
		Body:        body,
	}, env, nil
}

// MessageFromOutbox rebuilds the original message from a stored outbox row.
func MessageFromOutbox(event models.OutboxEvent, resolved *registry.ResolvedEvent) Message {
	msg := Message{
		EventID:   resolved.Envelope.EventID,
		EventType: event.EventType,
		Body:      event.Payload,
	}
	if payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent); ok {
		msg.OrderNumber = payload.OrderNumber
	}
	return msg
}
