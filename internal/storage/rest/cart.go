package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
)

var _ cart.Store = (*Client)(nil)

// ListLines returns the cart lines of a user.
func (c *Client) ListLines(ctx context.Context, userEmail string) ([]cart.Line, error) {
	var out []cart.Line
	err := c.do(ctx, call{
		op:     "list cart",
		method: http.MethodGet,
		path:   "/api/cart",
		query:  url.Values{"userEmail": {userEmail}},
		decode: func(d *jx.Decoder) error {
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return err
				}
				out = append(out, l)
				return nil
			})
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateLine stores a new quantity and line total.
func (c *Client) UpdateLine(ctx context.Context, id string, quantity int, totalBill decimal.Decimal) error {
	return c.do(ctx, call{
		op:     "update cart line",
		method: http.MethodPut,
		path:   "/api/cart/" + id,
		body: func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("quantity")
			e.Int(quantity)
			e.FieldStart("totalBill")
			encodeMoney(e, totalBill)
			e.ObjEnd()
		},
		notFound: cart.ErrLineNotFound,
	})
}

// DeleteLine removes a cart line.
func (c *Client) DeleteLine(ctx context.Context, id string) error {
	return c.do(ctx, call{
		op:       "delete cart line",
		method:   http.MethodDelete,
		path:     "/api/cart/" + id,
		notFound: cart.ErrLineNotFound,
	})
}

// CreateLine adds a line to the cart and returns it with the id assigned by
// the API. The id stays empty when the API does not report one.
func (c *Client) CreateLine(ctx context.Context, line cart.Line) (cart.Line, error) {
	var id string
	err := c.do(ctx, call{
		op:     "create cart line",
		method: http.MethodPost,
		path:   "/api/cart",
		body:   func(e *jx.Encoder) { encodeLine(e, line) },
		decode: func(d *jx.Decoder) error { return decodeCreatedID(d, &id) },
	})
	if err != nil {
		return cart.Line{}, err
	}
	line.ID = id
	return line, nil
}
