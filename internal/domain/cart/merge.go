package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// LineState is the purchasability of a merged line.
type LineState string

const (
	StatePresent    LineState = "present"
	StateOutOfStock LineState = "out_of_stock"
)

// MergedLine is a cart line joined with the stock the catalog reports for
// its product. It is derived on every read and never persisted.
type MergedLine struct {
	Line
	Stock int
}

// State reports whether the line can still be edited.
func (m MergedLine) State() LineState {
	if m.Stock <= 0 {
		return StateOutOfStock
	}
	return StatePresent
}

// Merge joins lines with products by (product name, shop id). A line whose
// product is absent from the catalog gets stock 0. The result keeps the order
// of lines and Merge has no side effects.
func Merge(lines []Line, products []product.Product) []MergedLine {
	stock := stockIndex(products)

	out := make([]MergedLine, len(lines))
	for i, l := range lines {
		out[i] = MergedLine{Line: l, Stock: stock[l.Key()]}
	}
	return out
}

// stockIndex maps product keys to available quantity. The first product
// with a given key wins and negative stock counts as none.
func stockIndex(products []product.Product) map[product.Key]int {
	idx := make(map[product.Key]int, len(products))
	for _, p := range products {
		k := p.Key()
		if _, ok := idx[k]; ok {
			continue
		}
		idx[k] = max(p.Available, 0)
	}
	return idx
}

// Totals summarises a cart for display.
type Totals struct {
	Quantity int
	Bill     decimal.Decimal
}

// ComputeTotals sums quantities and line bills over merged lines.
func ComputeTotals(lines []MergedLine) Totals {
	t := Totals{Bill: decimal.Zero}
	for _, l := range lines {
		t.Quantity += l.Quantity
		t.Bill = t.Bill.Add(l.TotalBill)
	}
	t.Bill = t.Bill.Round(2)
	return t
}
