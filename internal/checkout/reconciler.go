package checkout

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	msgCatalogUnavailable = "Unable to validate product against Catalog."
	msgPricingUnavailable = "Product pricing unavailable for one or more items."
)

// ReconciledLine is a cart item confirmed against catalog truth.
type ReconciledLine struct {
	Item        models.CartItem
	ProductName string
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Reconciliation is the validated snapshot a placement materializes.
type Reconciliation struct {
	Lines    []ReconciledLine
	Subtotal decimal.Decimal
}

// PriceMismatch describes one stale snapshot.
type PriceMismatch struct {
	ProductID    int64  `json:"product_id"`
	CartPrice    string `json:"cart_price"`
	CatalogPrice string `json:"catalog_price"`
}

// StockShortfall describes one line whose quantity exceeds known stock.
type StockShortfall struct {
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Available int   `json:"available"`
}

// Reconciler re-validates cart snapshots against the catalog read port.
type Reconciler struct {
	catalog catalog.Reader
}

func NewReconciler(reader catalog.Reader) (*Reconciler, error) {
	if reader == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &Reconciler{catalog: reader}, nil
}

// Reconcile fetches every distinct product once, then rejects the cart on the first
// class of inconsistency found. Prices are compared at 2 places; unknown stock is unconstrained.
func (r *Reconciler) Reconcile(ctx context.Context, cart *models.Cart) (*Reconciliation, error) {
	if cart == nil || len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "Cart is empty.")
	}

	products := make(map[int64]*catalog.Product, len(cart.Items))
	for _, id := range helpers.DistinctProductIDs(cart.Items) {
		product, err := r.catalog.Lookup(ctx, catalog.ProductRef{ID: id})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, msgCatalogUnavailable).
				WithDetails(map[string]any{"product_id": id})
		}
		if product.Price == nil {
			return nil, pkgerrors.New(pkgerrors.CodeUpstreamUnavailable, msgPricingUnavailable).
				WithDetails(map[string]any{"product_id": id})
		}
		products[id] = product
	}

	var mismatches []PriceMismatch
	var shortfalls []StockShortfall
	for _, item := range cart.Items {
		product := products[item.ProductID]
		cartPrice := item.UnitPriceSnapshot.StringFixed(2)
		catalogPrice := product.Price.StringFixed(2)
		if cartPrice != catalogPrice {
			mismatches = append(mismatches, PriceMismatch{
				ProductID:    item.ProductID,
				CartPrice:    cartPrice,
				CatalogPrice: catalogPrice,
			})
		}
		if product.QuantityAvailable != nil && *product.QuantityAvailable < item.Quantity {
			shortfalls = append(shortfalls, StockShortfall{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: *product.QuantityAvailable,
			})
		}
	}
	if len(mismatches) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodePriceChanged,
			"Product price has changed. Please refresh your cart and try again.").
			WithDetails(map[string]any{"items": mismatches})
	}
	if len(shortfalls) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock,
			"One or more items are out of stock or do not have enough quantity.").
			WithDetails(map[string]any{"items": shortfalls})
	}

	result := &Reconciliation{Lines: make([]ReconciledLine, 0, len(cart.Items))}
	for _, item := range cart.Items {
		price := item.UnitPriceSnapshot.Round(2)
		result.Lines = append(result.Lines, ReconciledLine{
			Item:        item,
			ProductName: products[item.ProductID].Name,
			UnitPrice:   price,
			LineTotal:   price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2),
		})
	}
	result.Subtotal = helpers.ComputeSubtotal(cart.Items)
	return result, nil
}
