package orders

import (
	"strings"

	"github.com/shopspring/decimal"

	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
)

type placeOrderRequest struct {
	CartToken       string           `json:"cart_token" validate:"required,max=255"`
	Email           string           `json:"email" validate:"required,email,max=255"`
	CustomerName    string           `json:"customer_name" validate:"max=255"`
	ShippingAddress string           `json:"shipping_address" validate:"required"`
	ShippingMethod  *string          `json:"shipping_method" validate:"omitempty,max=100"`
	Tax             *decimal.Decimal `json:"tax"`
	Shipping        *decimal.Decimal `json:"shipping"`
	PaymentToken    *string          `json:"payment_token" validate:"omitempty,max=255"`
}

func (r placeOrderRequest) toInput(userID string) checkoutsvc.PlaceOrderInput {
	input := checkoutsvc.PlaceOrderInput{
		CartToken:       strings.TrimSpace(r.CartToken),
		Email:           strings.TrimSpace(r.Email),
		CustomerName:    strings.TrimSpace(r.CustomerName),
		ShippingAddress: strings.TrimSpace(r.ShippingAddress),
		ShippingMethod:  r.ShippingMethod,
		Tax:             r.Tax,
		Shipping:        r.Shipping,
		PaymentToken:    r.PaymentToken,
	}
	if userID != "" {
		input.UserID = &userID
	}
	return input
}
