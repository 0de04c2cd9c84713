package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

var _ order.Service = (*Client)(nil)

// CreateOrder submits an order and returns its id.
func (c *Client) CreateOrder(ctx context.Context, o order.Order) (string, error) {
	var id string
	err := c.do(ctx, call{
		op:     "create order",
		method: http.MethodPost,
		path:   "/api/orders",
		body:   func(e *jx.Encoder) { encodeOrder(e, o) },
		decode: func(d *jx.Decoder) error { return decodeCreatedID(d, &id) },
	})
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &UpstreamError{Op: "create order", Err: errors.New("response has no order id")}
	}
	return id, nil
}

// ListOrders returns the orders of a customer or a shop.
func (c *Client) ListOrders(ctx context.Context, filter order.Filter) ([]order.Order, error) {
	q := url.Values{}
	if filter.Email != "" {
		q.Set("email", filter.Email)
	}
	if filter.ShopName != "" {
		q.Set("shopName", filter.ShopName)
	}

	var out []order.Order
	err := c.do(ctx, call{
		op:     "list orders",
		method: http.MethodGet,
		path:   "/api/orders",
		query:  q,
		decode: func(d *jx.Decoder) error {
			return d.Arr(func(d *jx.Decoder) error {
				o, err := decodeOrder(d)
				if err != nil {
					return err
				}
				out = append(out, o)
				return nil
			})
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateOrderStatus sets the fulfilment status of an order.
func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status order.Status) error {
	return c.do(ctx, call{
		op:     "update order",
		method: http.MethodPut,
		path:   "/api/orders/" + id,
		body: func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("received")
			e.Str(string(status))
			e.ObjEnd()
		},
		notFound: order.ErrNotFound,
	})
}

// DeleteOrder removes an order.
func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	return c.do(ctx, call{
		op:       "delete order",
		method:   http.MethodDelete,
		path:     "/api/orders/" + id,
		notFound: order.ErrNotFound,
	})
}
