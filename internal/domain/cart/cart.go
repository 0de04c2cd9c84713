// Package cart reconciles a user's persisted cart lines with live catalog
// stock, guards quantity edits against that stock, and turns the cart into
// per-shop orders.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Sentinel errors for cart operations.
var (
	ErrLineNotFound    = errors.New("cart line not found")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrMultipleShops   = errors.New("cart spans more than one shop")
)

// ExceedsStockError is returned when a requested quantity is above the stock
// the catalog currently reports.
type ExceedsStockError struct {
	LineID    string
	Requested int
	Stock     int
}

func (e *ExceedsStockError) Error() string {
	if e.LineID == "" {
		return fmt.Sprintf("quantity %d exceeds available stock %d", e.Requested, e.Stock)
	}
	return fmt.Sprintf("quantity %d exceeds available stock %d for line %s", e.Requested, e.Stock, e.LineID)
}

// MissingFieldError is returned when an order draft lacks a required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %s", e.Field)
}

// CorruptLineError is returned for a stored line whose quantity cannot yield
// a unit price.
type CorruptLineError struct {
	LineID   string
	Quantity int
}

func (e *CorruptLineError) Error() string {
	return fmt.Sprintf("cart line %s has invalid quantity %d", e.LineID, e.Quantity)
}

// IsValidation reports whether err is a validation failure that the caller
// can fix by changing its input.
func IsValidation(err error) bool {
	var (
		exceeds *ExceedsStockError
		missing *MissingFieldError
	)
	return errors.As(err, &exceeds) ||
		errors.As(err, &missing) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrMultipleShops)
}

// Line is one persisted cart record. TotalBill is the price of the whole
// line as captured when the product was added.
type Line struct {
	ID          string
	UserEmail   string
	ProductName string
	ShopID      string
	ShopName    string
	Quantity    int
	TotalBill   decimal.Decimal
}

// Key returns the catalog identity of the line's product.
func (l Line) Key() product.Key {
	return product.Key{Name: l.ProductName, ShopID: l.ShopID}
}

// UnitPrice returns TotalBill / Quantity without rounding.
func (l Line) UnitPrice() (decimal.Decimal, error) {
	if l.Quantity <= 0 {
		return decimal.Zero, &CorruptLineError{LineID: l.ID, Quantity: l.Quantity}
	}
	return l.TotalBill.Div(decimal.NewFromInt(int64(l.Quantity))), nil
}

// Reprice returns the line total for quantity at the locked unit price,
// rounded to cents.
func (l Line) Reprice(quantity int) (decimal.Decimal, error) {
	unit, err := l.UnitPrice()
	if err != nil {
		return decimal.Zero, err
	}
	return unit.Mul(decimal.NewFromInt(int64(quantity))).Round(2), nil
}

// Store is the remote cart collaborator.
type Store interface {
	ListLines(ctx context.Context, userEmail string) ([]Line, error)
	UpdateLine(ctx context.Context, id string, quantity int, totalBill decimal.Decimal) error
	DeleteLine(ctx context.Context, id string) error
	CreateLine(ctx context.Context, line Line) (Line, error)
}

// OrderPlaced describes an order accepted by the order service.
type OrderPlaced struct {
	OrderID   string
	ShopID    string
	ShopName  string
	UserEmail string
	Total     decimal.Decimal
	Items     int
	PlacedAt  time.Time
}

// Publisher announces placed orders to interested consumers.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, ev OrderPlaced) error
}

type nopPublisher struct{}

func (nopPublisher) PublishOrderPlaced(context.Context, OrderPlaced) error { return nil }
