package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Lookup modes exposed by the catalog read API.
const (
	ModeSKU = "sku"
	ModeID  = "id"
)

// ProductRef identifies a product by SKU or by catalog id; exactly one must be set.
type ProductRef struct {
	SKU string
	ID  int64
}

// Mode reports which key variant the reference carries.
func (r ProductRef) Mode() string {
	if strings.TrimSpace(r.SKU) != "" {
		return ModeSKU
	}
	return ModeID
}

func (r ProductRef) Validate() error {
	hasSKU := strings.TrimSpace(r.SKU) != ""
	switch {
	case hasSKU && r.ID != 0:
		return fmt.Errorf("provide either product_sku or product_id, not both")
	case !hasSKU && r.ID <= 0:
		return fmt.Errorf("product_sku or product_id is required")
	}
	return nil
}

func (r ProductRef) String() string {
	if r.Mode() == ModeSKU {
		return "sku:" + strings.TrimSpace(r.SKU)
	}
	return fmt.Sprintf("id:%d", r.ID)
}

// Product is the point-in-time catalog view used for snapshots and reconciliation.
type Product struct {
	ID   int64
	Name string
	// Price is nil when the catalog has no price for the product.
	Price *decimal.Decimal
	// QuantityAvailable is nil when stock is untracked.
	QuantityAvailable *int
}

type productListResponse struct {
	Data []productDTO `json:"data"`
}

type productDTO struct {
	ID        int64               `json:"id"`
	Name      string              `json:"name"`
	Price     decimal.NullDecimal `json:"price"`
	Inventory *inventoryDTO       `json:"inventory"`
}

type inventoryDTO struct {
	QuantityAvailable *int `json:"quantity_available"`
}

func (p productDTO) toProduct() *Product {
	out := &Product{ID: p.ID, Name: p.Name}
	if p.Price.Valid {
		price := p.Price.Decimal.Round(2)
		out.Price = &price
	}
	if p.Inventory != nil && p.Inventory.QuantityAvailable != nil {
		qty := *p.Inventory.QuantityAvailable
		out.QuantityAvailable = &qty
	}
	return out
}
