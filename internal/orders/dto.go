package orders

import (
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// View is the order confirmation returned by placement and order lookup.
type View struct {
	ID              uuid.UUID         `json:"id"`
	OrderNumber     string            `json:"order_number"`
	Email           string            `json:"email"`
	CustomerName    string            `json:"customer_name"`
	ShippingAddress string            `json:"shipping_address"`
	ShippingMethod  *string           `json:"shipping_method"`
	Status          enums.OrderStatus `json:"status"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Tax             decimal.Decimal   `json:"tax"`
	Shipping        decimal.Decimal   `json:"shipping"`
	Total           decimal.Decimal   `json:"total"`
	Items           []ItemView        `json:"items"`
	Payment         *PaymentView      `json:"payment"`
	CreatedAt       time.Time         `json:"created_at"`
}

type ItemView struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type PaymentView struct {
	Provider          enums.PaymentProvider `json:"provider"`
	ProviderReference *string               `json:"provider_reference"`
	Status            enums.PaymentStatus   `json:"status"`
	Amount            decimal.Decimal       `json:"amount"`
}

// NewView maps a loaded order model into its response shape.
func NewView(order *models.Order) *View {
	view := &View{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Email:           order.Email,
		CustomerName:    order.CustomerName,
		ShippingAddress: order.ShippingAddress,
		ShippingMethod:  order.ShippingMethod,
		Status:          order.Status,
		Subtotal:        order.Subtotal.Round(2),
		Tax:             order.Tax.Round(2),
		Shipping:        order.Shipping.Round(2),
		Total:           order.Total.Round(2),
		Items:           make([]ItemView, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, ItemView{
			ProductID:   item.ProductID,
			ProductName: item.ProductNameSnapshot,
			UnitPrice:   item.UnitPriceSnapshot.Round(2),
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal.Round(2),
		})
	}
	if order.Payment != nil {
		view.Payment = &PaymentView{
			Provider:          order.Payment.Provider,
			ProviderReference: order.Payment.ProviderReference,
			Status:            order.Payment.Status,
			Amount:            order.Payment.Amount.Round(2),
		}
	}
	return view
}
