package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order management.
var (
	ErrNotFound      = errors.New("order not found")
	ErrMissingFilter = errors.New("order filter requires an email or shop name")
)

// NotOwnedError indicates a shop tried to act on another shop's order.
type NotOwnedError struct {
	OrderID  string
	ShopName string
}

func (e *NotOwnedError) Error() string {
	return fmt.Sprintf("order %s does not belong to shop %s", e.OrderID, e.ShopName)
}

// AlreadyCompleteError indicates a status transition on a finished order.
type AlreadyCompleteError struct {
	OrderID string
}

func (e *AlreadyCompleteError) Error() string {
	return fmt.Sprintf("order %s is already complete", e.OrderID)
}

// Desk holds the shop-side and customer-side order operations that sit on
// top of the remote Service: listing, completing and deleting orders.
type Desk struct {
	orders Service
}

// NewDesk creates a Desk backed by the given order Service.
func NewDesk(orders Service) *Desk {
	return &Desk{orders: orders}
}

// ForCustomer lists the orders placed with the given email.
func (d *Desk) ForCustomer(ctx context.Context, email string) ([]Order, error) {
	if email == "" {
		return nil, ErrMissingFilter
	}
	orders, err := d.orders.ListOrders(ctx, Filter{Email: email})
	if err != nil {
		return nil, errors.Wrap(err, "list customer orders")
	}
	return orders, nil
}

// ForShop lists the orders addressed to the given shop.
func (d *Desk) ForShop(ctx context.Context, shopName string) ([]Order, error) {
	if shopName == "" {
		return nil, ErrMissingFilter
	}
	orders, err := d.orders.ListOrders(ctx, Filter{ShopName: shopName})
	if err != nil {
		return nil, errors.Wrap(err, "list shop orders")
	}
	return orders, nil
}

// Complete moves a pending order of the shop to StatusComplete.
func (d *Desk) Complete(ctx context.Context, shopName, id string) (*Order, error) {
	o, err := d.owned(ctx, shopName, id)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusComplete {
		return nil, &AlreadyCompleteError{OrderID: id}
	}

	if err := d.orders.UpdateOrderStatus(ctx, id, StatusComplete); err != nil {
		return nil, errors.Wrapf(err, "complete order %s", id)
	}
	o.Status = StatusComplete
	return o, nil
}

// Delete removes an order of the shop.
func (d *Desk) Delete(ctx context.Context, shopName, id string) error {
	if _, err := d.owned(ctx, shopName, id); err != nil {
		return err
	}
	if err := d.orders.DeleteOrder(ctx, id); err != nil {
		return errors.Wrapf(err, "delete order %s", id)
	}
	return nil
}

// owned looks the order up among the shop's orders.
func (d *Desk) owned(ctx context.Context, shopName, id string) (*Order, error) {
	orders, err := d.ForShop(ctx, shopName)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].ID == id {
			return &orders[i], nil
		}
	}
	// The upstream filters by shop, so an unknown id may still exist elsewhere.
	return nil, &NotOwnedError{OrderID: id, ShopName: shopName}
}
