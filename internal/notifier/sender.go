package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/payloads"
)

// Email is a rendered plain-text message.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender hands an email to a delivery provider.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// LogSender records the email in the structured log instead of delivering it.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, email Email) error {
	if s.logg == nil {
		return nil
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"to":      email.To,
		"from":    email.From,
		"subject": email.Subject,
	}), "email sent")
	return nil
}

func confirmationSubject(orderNumber string) string {
	return "Order confirmation " + orderNumber
}

func renderConfirmation(event *payloads.OrderCreatedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", event.OrderNumber)
	for _, item := range event.Items {
		fmt.Fprintf(&b, "%d x %s @ %s = %s\n", item.Quantity, item.ProductName, item.UnitPrice, item.LineTotal)
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\nTax: %s\nShipping: %s\nTotal: %s\n",
		event.Subtotal, event.Tax, event.Shipping, event.Total)
	return b.String()
}
