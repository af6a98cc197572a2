// Package catalogtest provides an in-memory catalog reader for tests.
package catalogtest

import (
	"context"
	"sync"

	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/shopspring/decimal"
)

// Stub serves products by id or sku and counts lookups per product id.
type Stub struct {
	mu       sync.Mutex
	products map[int64]catalog.Product
	skus     map[string]int64
	calls    map[int64]int
	// Err, when set, is returned by every lookup.
	Err error
}

func NewStub() *Stub {
	return &Stub{
		products: map[int64]catalog.Product{},
		skus:     map[string]int64{},
		calls:    map[int64]int{},
	}
}

// Put registers a priced product. A negative stock means untracked.
func (s *Stub) Put(id int64, sku, name, price string, stock int) {
	p := catalog.Product{ID: id, Name: name}
	if price != "" {
		d := decimal.RequireFromString(price)
		p.Price = &d
	}
	if stock >= 0 {
		qty := stock
		p.QuantityAvailable = &qty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = p
	if sku != "" {
		s.skus[sku] = id
	}
}

// SetPrice replaces the price of a registered product.
func (s *Stub) SetPrice(id int64, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	d := decimal.RequireFromString(price)
	p.Price = &d
	s.products[id] = p
}

func (s *Stub) Calls(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func (s *Stub) Lookup(_ context.Context, ref catalog.ProductRef) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	id := ref.ID
	if ref.Mode() == catalog.ModeSKU {
		id = s.skus[ref.SKU]
	}
	s.calls[id]++
	p, ok := s.products[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found in Catalog.")
	}
	return &p, nil
}
