package cart

import (
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// View is the reconstituted cart returned by every cart operation.
type View struct {
	ID     uuid.UUID        `json:"id"`
	Token  string           `json:"token"`
	Status enums.CartStatus `json:"status"`
	Items  []ItemView       `json:"items"`
	Totals Totals           `json:"totals"`
}

type ItemView struct {
	ID        uuid.UUID       `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
}

// NewView computes line totals and the subtotal from the current item rows.
func NewView(cart *models.Cart) *View {
	view := &View{
		ID:     cart.ID,
		Token:  cart.Token,
		Status: cart.Status,
		Items:  make([]ItemView, 0, len(cart.Items)),
		Totals: Totals{Subtotal: decimal.Zero},
	}
	subtotal := decimal.Zero
	for _, item := range cart.Items {
		line := item.LineTotal()
		subtotal = subtotal.Add(line)
		view.Items = append(view.Items, ItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPriceSnapshot.Round(2),
			LineTotal: line.Round(2),
		})
	}
	view.Totals.Subtotal = subtotal.Round(2)
	return view
}
