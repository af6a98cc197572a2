package helpers

import (
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/shopspring/decimal"
)

// DistinctProductIDs returns each referenced product id once, in first-seen order.
func DistinctProductIDs(items []models.CartItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// OrderTotals holds the 2-place money figures of an order.
type OrderTotals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// ComputeSubtotal sums snapshot price times quantity over the items.
func ComputeSubtotal(items []models.CartItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal.Round(2)
}

// ComputeTotals derives the order total from a subtotal and caller-supplied tax and shipping.
func ComputeTotals(subtotal, tax, shipping decimal.Decimal) OrderTotals {
	subtotal = subtotal.Round(2)
	tax = tax.Round(2)
	shipping = shipping.Round(2)
	return OrderTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}
