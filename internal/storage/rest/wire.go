package rest

import (
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// The REST API uses MongoDB style "_id" keys and names a cart line's
// product "product" while the catalog calls it "productName".

func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for amount", d.Next())
	}
}

func decodeInt(d *jx.Decoder) (int, error) {
	if d.Next() == jx.Null {
		return 0, d.Null()
	}
	n, err := d.Num()
	if err != nil {
		return 0, err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, err
	}
	if !v.IsInteger() {
		return 0, errors.Errorf("%s is not an integer", n)
	}
	if v.Abs().GreaterThan(maxCount) {
		return 0, errors.Errorf("%s is out of range", n)
	}
	return int(v.IntPart()), nil
}

var maxCount = decimal.NewFromInt(math.MaxInt32)

func decodeTime(d *jx.Decoder) (time.Time, error) {
	if d.Next() == jx.Null {
		return time.Time{}, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Float64(v.Round(2).InexactFloat64())
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "_id":
			p.ID, err = decodeString(d)
		case "productName":
			p.Name, err = decodeString(d)
		case "shopkeeperId":
			p.ShopID, err = decodeString(d)
		case "category":
			p.Category, err = decodeString(d)
		case "price":
			p.Price, err = decodeMoney(d)
		case "quantity":
			p.Available, err = decodeInt(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	return p, err
}

func decodeLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "_id":
			l.ID, err = decodeString(d)
		case "userEmail":
			l.UserEmail, err = decodeString(d)
		case "product":
			l.ProductName, err = decodeString(d)
		case "shopId":
			l.ShopID, err = decodeString(d)
		case "shopName":
			l.ShopName, err = decodeString(d)
		case "quantity":
			l.Quantity, err = decodeInt(d)
		case "totalBill":
			l.TotalBill, err = decodeMoney(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	return l, err
}

func encodeLine(e *jx.Encoder, l cart.Line) {
	e.ObjStart()
	e.FieldStart("userEmail")
	e.Str(l.UserEmail)
	e.FieldStart("product")
	e.Str(l.ProductName)
	e.FieldStart("shopId")
	e.Str(l.ShopID)
	e.FieldStart("shopName")
	e.Str(l.ShopName)
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.FieldStart("totalBill")
	encodeMoney(e, l.TotalBill)
	e.ObjEnd()
}

func decodeOrder(d *jx.Decoder) (order.Order, error) {
	var o order.Order
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "_id":
			o.ID, err = decodeString(d)
		case "shopId":
			o.ShopID, err = decodeString(d)
		case "shopName":
			o.ShopName, err = decodeString(d)
		case "email":
			o.Email, err = decodeString(d)
		case "mobileNo":
			o.MobileNo, err = decodeString(d)
		case "address":
			o.Address, err = decodeString(d)
		case "createdAt":
			o.CreatedAt, err = decodeTime(d)
		case "received":
			var s string
			s, err = decodeString(d)
			o.Status = order.Status(s)
		case "products":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				o.Products = append(o.Products, it)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if o.Status == "" {
		o.Status = order.StatusPending
	}
	return o, err
}

func decodeItem(d *jx.Decoder) (order.Item, error) {
	var it order.Item
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "productName":
			it.ProductName, err = decodeString(d)
		case "quantity":
			it.Quantity, err = decodeInt(d)
		case "price":
			it.Price, err = decodeMoney(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
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
	e.FieldStart("products")
	e.ArrStart()
	for _, it := range o.Products {
		e.ObjStart()
		e.FieldStart("productName")
		e.Str(it.ProductName)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		encodeMoney(e, it.Price)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

// decodeCreatedID reads the id of a created resource. The API answers either
// with the resource itself or with an envelope naming it.
func decodeCreatedID(d *jx.Decoder, id *string) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "_id", "id", "orderId":
			if d.Next() != jx.String {
				return d.Skip()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			if *id == "" {
				*id = s
			}
			return nil
		case "order", "cart", "data":
			return decodeCreatedID(d, id)
		default:
			return d.Skip()
		}
	})
}
