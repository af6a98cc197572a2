package helpers

import (
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/shopspring/decimal"
)

// ValidatePlaceableCart ensures the cart is open and has at least one item.
func ValidatePlaceableCart(cart *models.Cart) error {
	if cart == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found.")
	}
	if !cart.Status.Mutable() {
		return pkgerrors.New(pkgerrors.CodeConflict, "Cart has already been checked out.")
	}
	if len(cart.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeEmptyCart, "Cart is empty.")
	}
	return nil
}

// NonNegativeAmount defaults a missing amount to zero and rejects negatives.
func NonNegativeAmount(field string, value *decimal.Decimal) (decimal.Decimal, error) {
	if value == nil {
		return decimal.Zero, nil
	}
	if value.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{field: "must be greater than or equal to 0"})
	}
	return value.Round(2), nil
}
