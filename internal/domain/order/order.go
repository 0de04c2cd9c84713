package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order as tracked by the shop.
type Status string

const (
	// StatusPending is the state of every newly submitted order.
	StatusPending Status = "Pending"
	// StatusComplete marks an order the shop has fulfilled.
	StatusComplete Status = "Complete"
)

// Order is a customer order addressed to a single shop.
type Order struct {
	ID        string
	ShopID    string
	ShopName  string
	Email     string
	MobileNo  string
	Address   string
	Products  []Item
	Status    Status
	CreatedAt time.Time
}

// Item is a single product line of an order. Price is the unit price.
type Item struct {
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// Total returns the sum of price * quantity over all items, rounded to cents.
func (o Order) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Products {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.Round(2)
}

// Filter selects orders by customer email or by shop. Empty fields are ignored.
type Filter struct {
	Email    string
	ShopName string
}

// Service is the remote order collaborator.
type Service interface {
	CreateOrder(ctx context.Context, o Order) (string, error)
	ListOrders(ctx context.Context, filter Filter) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status Status) error
	DeleteOrder(ctx context.Context, id string) error
}
