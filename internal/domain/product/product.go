package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog entry offered by a single shop. A product is
// identified by its name together with the owning shop.
type Product struct {
	ID       string
	Name     string
	ShopID   string
	Price    decimal.Decimal
	Category string
	// Available is the quantity currently in stock at the shop.
	Available int
}

// Key returns the identity of the product within the catalog.
func (p Product) Key() Key {
	return Key{Name: p.Name, ShopID: p.ShopID}
}

// Key identifies a product by name and shop.
type Key struct {
	Name   string
	ShopID string
}

// Filter narrows a catalog listing. The zero value lists every product.
type Filter struct {
	ShopID string
}

// Catalog provides read access to the remote product catalog.
type Catalog interface {
	ListProducts(ctx context.Context, filter Filter) ([]Product, error)
}

// Find returns the product matching key, if present.
func Find(products []Product, key Key) (Product, bool) {
	for _, p := range products {
		if p.Key() == key {
			return p, true
		}
	}
	return Product{}, false
}
