package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
)

var _ product.Catalog = (*Client)(nil)

// ListProducts returns the catalog, optionally narrowed to one shop.
func (c *Client) ListProducts(ctx context.Context, filter product.Filter) ([]product.Product, error) {
	q := url.Values{}
	if filter.ShopID != "" {
		q.Set("shopkeeperId", filter.ShopID)
	}

	var out []product.Product
	err := c.do(ctx, call{
		op:     "list products",
		method: http.MethodGet,
		path:   "/api/products",
		query:  q,
		decode: func(d *jx.Decoder) error {
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return err
				}
				out = append(out, p)
				return nil
			})
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
