package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/cleanup"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

const maxBodyBytes = 1 << 20

// BadRequestError reports a request body that could not be read.
type BadRequestError struct {
	Err error
}

func (e *BadRequestError) Error() string {
	return "invalid request body: " + e.Err.Error()
}

func (e *BadRequestError) Unwrap() error {
	return e.Err
}

type requestBody interface {
	decode(d *jx.Decoder) error
}

func decodeBody(r *http.Request, v requestBody) error {
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return &BadRequestError{Err: err}
	}
	if len(data) == 0 {
		return &BadRequestError{Err: errors.New("empty body")}
	}
	if err := v.decode(jx.DecodeBytes(data)); err != nil {
		return &BadRequestError{Err: err}
	}
	return nil
}

// fields decodes an object, handing every known key to its setter and
// skipping the rest.
func fields(d *jx.Decoder, set map[string]func(d *jx.Decoder) error) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if fn, ok := set[string(key)]; ok {
			if err := fn(d); err != nil {
				return errors.Wrapf(err, "field %s", key)
			}
			return nil
		}
		return d.Skip()
	})
}

func str(dst *string) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error {
		v, err := d.Str()
		*dst = v
		return err
	}
}

func integer(dst *int) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error {
		v, err := d.Int()
		*dst = v
		return err
	}
}

type loginRequest struct {
	Email    string
	ShopID   string
	ShopName string
	Role     string
}

func (l *loginRequest) decode(d *jx.Decoder) error {
	return fields(d, map[string]func(d *jx.Decoder) error{
		"email":    str(&l.Email),
		"shopId":   str(&l.ShopID),
		"shopName": str(&l.ShopName),
		"role":     str(&l.Role),
	})
}

type addRequest struct {
	cart.AddRequest
}

func (a *addRequest) decode(d *jx.Decoder) error {
	return fields(d, map[string]func(d *jx.Decoder) error{
		"productName": str(&a.ProductName),
		"shopId":      str(&a.ShopID),
		"shopName":    str(&a.ShopName),
		"quantity":    integer(&a.Quantity),
	})
}

type quantityRequest struct {
	Quantity *int
}

func (q *quantityRequest) decode(d *jx.Decoder) error {
	var n int
	err := fields(d, map[string]func(d *jx.Decoder) error{
		"quantity": func(d *jx.Decoder) error {
			if err := integer(&n)(d); err != nil {
				return err
			}
			q.Quantity = &n
			return nil
		},
	})
	if err == nil && q.Quantity == nil {
		return errors.New("quantity is required")
	}
	return err
}

type checkoutRequest struct {
	cart.OrderDraft
}

func (c *checkoutRequest) decode(d *jx.Decoder) error {
	return fields(d, map[string]func(d *jx.Decoder) error{
		"email":    str(&c.Email),
		"mobileNo": str(&c.MobileNo),
		"address":  str(&c.Address),
	})
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Float64(v.Round(2).InexactFloat64())
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("shopId")
	e.Str(p.ShopID)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("price")
	money(e, p.Price)
	e.FieldStart("available")
	e.Int(max(p.Available, 0))
	e.ObjEnd()
}

func encodeLine(e *jx.Encoder, l cart.MergedLine) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(l.ID)
	e.FieldStart("productName")
	e.Str(l.ProductName)
	e.FieldStart("shopId")
	e.Str(l.ShopID)
	e.FieldStart("shopName")
	e.Str(l.ShopName)
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.FieldStart("totalBill")
	money(e, l.TotalBill)
	e.FieldStart("stock")
	e.Int(l.Stock)
	e.FieldStart("state")
	e.Str(string(l.State()))
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("shopId")
	e.Str(o.ShopID)
	e.FieldStart("shopName")
	e.Str(o.ShopName)
	e.FieldStart("email")
	e.Str(o.Email)
	e.FieldStart("mobileNo")
	e.Str(o.MobileNo)
	e.FieldStart("address")
	e.Str(o.Address)
	e.FieldStart("status")
	e.Str(string(o.Status))
	if !o.CreatedAt.IsZero() {
		e.FieldStart("createdAt")
		e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	}
	e.FieldStart("products")
	e.ArrStart()
	for _, it := range o.Products {
		e.ObjStart()
		e.FieldStart("productName")
		e.Str(it.ProductName)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		money(e, it.Price)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	money(e, o.Total())
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for _, o := range orders {
		encodeOrder(e, o)
	}
	e.ArrEnd()
}

func encodeSaga(e *jx.Encoder, s *cleanup.Saga) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(s.ID)
	e.FieldStart("orderId")
	e.Str(s.OrderID)
	e.FieldStart("shopId")
	e.Str(s.ShopID)
	e.FieldStart("total")
	money(e, s.Total)
	e.FieldStart("tasks")
	e.ArrStart()
	for _, t := range s.Tasks {
		e.ObjStart()
		e.FieldStart("lineId")
		e.Str(t.LineID)
		e.FieldStart("status")
		e.Str(string(t.Status))
		e.FieldStart("attempts")
		e.Int(t.Attempts)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
