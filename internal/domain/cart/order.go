package cart

import (
	"github.com/xenking/storefront/internal/domain/order"
)

// OrderDraft holds the delivery details entered at checkout.
type OrderDraft struct {
	Email    string
	MobileNo string
	Address  string
}

// Validate returns a MissingFieldError for the first empty field.
func (d OrderDraft) Validate() error {
	switch {
	case d.Email == "":
		return &MissingFieldError{Field: "email"}
	case d.MobileNo == "":
		return &MissingFieldError{Field: "mobileNo"}
	case d.Address == "":
		return &MissingFieldError{Field: "address"}
	}
	return nil
}

// shopGroup is the run of cart lines addressed to one shop.
type shopGroup struct {
	shopID   string
	shopName string
	lines    []Line
}

// groupByShop partitions lines by shop id, keeping the order in which shops
// first appear and the order of lines within each shop.
func groupByShop(lines []Line) []shopGroup {
	var groups []shopGroup
	pos := make(map[string]int)
	for _, l := range lines {
		i, ok := pos[l.ShopID]
		if !ok {
			i = len(groups)
			pos[l.ShopID] = i
			groups = append(groups, shopGroup{shopID: l.ShopID, shopName: l.ShopName})
		}
		groups[i].lines = append(groups[i].lines, l)
	}
	return groups
}

// BuildOrders turns the cart into one pending order per shop. Each product
// price is the line's locked unit price rounded to cents.
func BuildOrders(lines []Line, draft OrderDraft) ([]order.Order, error) {
	groups, err := prepare(lines, draft)
	if err != nil {
		return nil, err
	}

	orders := make([]order.Order, len(groups))
	for i, g := range groups {
		o, err := buildOrder(g, draft)
		if err != nil {
			return nil, err
		}
		orders[i] = o
	}
	return orders, nil
}

// BuildOrder is BuildOrders for a cart that must belong to a single shop.
func BuildOrder(lines []Line, draft OrderDraft) (order.Order, error) {
	groups, err := prepare(lines, draft)
	if err != nil {
		return order.Order{}, err
	}
	if len(groups) > 1 {
		return order.Order{}, ErrMultipleShops
	}
	return buildOrder(groups[0], draft)
}

func prepare(lines []Line, draft OrderDraft) ([]shopGroup, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return groupByShop(lines), nil
}

func buildOrder(g shopGroup, draft OrderDraft) (order.Order, error) {
	items := make([]order.Item, len(g.lines))
	for i, l := range g.lines {
		unit, err := l.UnitPrice()
		if err != nil {
			return order.Order{}, err
		}
		items[i] = order.Item{
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			Price:       unit.Round(2),
		}
	}

	return order.Order{
		ShopID:   g.shopID,
		ShopName: g.shopName,
		Email:    draft.Email,
		MobileNo: draft.MobileNo,
		Address:  draft.Address,
		Products: items,
		Status:   order.StatusPending,
	}, nil
}
