package cart

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/cleanup"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
)

// Cleaner removes the cart lines behind an accepted order.
type Cleaner interface {
	Run(ctx context.Context, s *cleanup.Saga) cleanup.Report
}

// Engine is the cart of one session. It is not safe for concurrent use; a
// session has a single mutator.
type Engine struct {
	sess    session.Session
	catalog product.Catalog
	store   Store
	orders  order.Service
	cleaner Cleaner
	events  Publisher

	lines    []Line
	products []product.Product
}

// NewEngine creates an Engine for sess. A nil events publisher disables
// order-placed events.
func NewEngine(
	sess session.Session,
	catalog product.Catalog,
	store Store,
	orders order.Service,
	cleaner Cleaner,
	events Publisher,
) *Engine {
	if events == nil {
		events = nopPublisher{}
	}
	return &Engine{
		sess:    sess,
		catalog: catalog,
		store:   store,
		orders:  orders,
		cleaner: cleaner,
		events:  events,
	}
}

// Load fetches the session's cart lines and the catalog. On failure the
// previously loaded state is kept.
func (e *Engine) Load(ctx context.Context) error {
	var (
		lines    []Line
		products []product.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lines, err = e.store.ListLines(gctx, e.sess.UserEmail)
		if err != nil {
			return errors.Wrap(err, "list cart lines")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		products, err = e.catalog.ListProducts(gctx, product.Filter{})
		if err != nil {
			return errors.Wrap(err, "list products")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	e.lines = lines
	e.products = products
	return nil
}

// Lines recomputes the merged view of the cart.
func (e *Engine) Lines() []MergedLine {
	return Merge(e.lines, e.products)
}

// Totals summarises the current cart.
func (e *Engine) Totals() Totals {
	return ComputeTotals(e.Lines())
}

// Change is the outcome of a quantity edit.
type Change struct {
	Accepted bool
	Line     MergedLine
}

// ChangeQuantity sets the quantity of a line at its locked unit price.
// Quantities below 1 are ignored. Quantities above the available stock are
// rejected with an *ExceedsStockError. The local line changes only after the
// store accepted the update.
func (e *Engine) ChangeQuantity(ctx context.Context, lineID string, quantity int) (Change, error) {
	if quantity < 1 {
		return Change{}, nil
	}

	i := e.index(lineID)
	if i < 0 {
		return Change{}, ErrLineNotFound
	}
	merged := Merge(e.lines[i:i+1], e.products)[0]
	if quantity > merged.Stock {
		return Change{Line: merged}, &ExceedsStockError{
			LineID:    lineID,
			Requested: quantity,
			Stock:     merged.Stock,
		}
	}

	total, err := merged.Reprice(quantity)
	if err != nil {
		return Change{Line: merged}, err
	}
	if err := e.store.UpdateLine(ctx, lineID, quantity, total); err != nil {
		return Change{Line: merged}, errors.Wrap(err, "update cart line")
	}

	e.lines[i].Quantity = quantity
	e.lines[i].TotalBill = total
	merged.Quantity = quantity
	merged.TotalBill = total
	return Change{Accepted: true, Line: merged}, nil
}

// Remove deletes a line from the store and then from the local cart.
func (e *Engine) Remove(ctx context.Context, lineID string) error {
	i := e.index(lineID)
	if i < 0 {
		return ErrLineNotFound
	}
	if err := e.store.DeleteLine(ctx, lineID); err != nil {
		return errors.Wrap(err, "delete cart line")
	}
	e.lines = slices.Delete(e.lines, i, i+1)
	return nil
}

// AddRequest selects a catalog product to put in the cart.
type AddRequest struct {
	ProductName string
	ShopID      string
	ShopName    string
	Quantity    int
}

// AddLine creates a cart line for a product at its current catalog price.
func (e *Engine) AddLine(ctx context.Context, req AddRequest) (Line, error) {
	if req.Quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}
	p, ok := product.Find(e.products, product.Key{Name: req.ProductName, ShopID: req.ShopID})
	if !ok {
		return Line{}, product.ErrNotFound
	}
	if req.Quantity > p.Available {
		return Line{}, &ExceedsStockError{Requested: req.Quantity, Stock: max(p.Available, 0)}
	}

	created, err := e.store.CreateLine(ctx, Line{
		UserEmail:   e.sess.UserEmail,
		ProductName: p.Name,
		ShopID:      p.ShopID,
		ShopName:    req.ShopName,
		Quantity:    req.Quantity,
		TotalBill:   p.Price.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2),
	})
	if err != nil {
		return Line{}, errors.Wrap(err, "create cart line")
	}

	if i := e.index(created.ID); created.ID != "" && i >= 0 {
		e.lines[i] = created
	} else {
		e.lines = append(e.lines, created)
	}
	return created, nil
}

// BuildOrders builds one order per shop from the current cart.
func (e *Engine) BuildOrders(draft OrderDraft) ([]order.Order, error) {
	return BuildOrders(e.lines, e.withSessionEmail(draft))
}

// Placement is the outcome of PlaceOrder.
type Placement struct {
	Orders  []order.Order
	Reports []cleanup.Report
}

// CleanupErr reports the cart lines that could not be removed after their
// orders were accepted.
func (p *Placement) CleanupErr() error {
	var lines []string
	var first error
	for _, r := range p.Reports {
		for _, f := range r.Failed {
			if first == nil {
				first = f.Err
			}
			lines = append(lines, f.LineID)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return &cleanup.LinesError{Lines: lines, First: first}
}

// PlaceOrder submits one order per shop and removes the lines each accepted
// order was built from. A failed line removal does not fail the placement;
// it is reported by Placement.CleanupErr and the line stays in the cart.
// When an order submission fails, the orders accepted before it are
// returned together with the error.
func (e *Engine) PlaceOrder(ctx context.Context, draft OrderDraft) (*Placement, error) {
	draft = e.withSessionEmail(draft)
	orders, err := BuildOrders(e.lines, draft)
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)
	groups := groupByShop(e.lines)
	p := &Placement{}
	for i, o := range orders {
		id, err := e.orders.CreateOrder(ctx, o)
		if err != nil {
			return p, errors.Wrapf(err, "create order for shop %s", o.ShopID)
		}
		o.ID = id
		p.Orders = append(p.Orders, o)

		ids := make([]string, len(groups[i].lines))
		for j, l := range groups[i].lines {
			ids[j] = l.ID
		}
		rep := e.cleaner.Run(ctx, cleanup.NewSaga(id, o.ShopID, e.sess.UserEmail, o.Total(), ids))
		p.Reports = append(p.Reports, rep)
		e.drop(rep.Done)

		ev := OrderPlaced{
			OrderID:   id,
			ShopID:    o.ShopID,
			ShopName:  o.ShopName,
			UserEmail: draft.Email,
			Total:     o.Total(),
			Items:     len(o.Products),
			PlacedAt:  time.Now().UTC(),
		}
		if err := e.events.PublishOrderPlaced(ctx, ev); err != nil {
			lg.Warn("Publish order placed", zap.String("order_id", id), zap.Error(err))
		}
	}
	return p, nil
}

func (e *Engine) withSessionEmail(d OrderDraft) OrderDraft {
	if d.Email == "" {
		d.Email = e.sess.UserEmail
	}
	return d
}

func (e *Engine) index(lineID string) int {
	return slices.IndexFunc(e.lines, func(l Line) bool { return l.ID == lineID })
}

func (e *Engine) drop(ids []string) {
	if len(ids) == 0 {
		return
	}
	e.lines = slices.DeleteFunc(e.lines, func(l Line) bool {
		return slices.Contains(ids, l.ID)
	})
}
