package cart

import (
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/catalog"
)

type createCartRequest struct {
	CartToken string `json:"cart_token" validate:"omitempty,max=255"`
}

type addItemRequest struct {
	CartToken  string `json:"cart_token" validate:"required,max=255"`
	ProductSKU string `json:"product_sku" validate:"required_without=ProductID,max=255"`
	ProductID  int64  `json:"product_id" validate:"required_without=ProductSKU,gte=0"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
}

func (r addItemRequest) productRef() catalog.ProductRef {
	return catalog.ProductRef{SKU: strings.TrimSpace(r.ProductSKU), ID: r.ProductID}
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}
