package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cleanup"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/internal/storage/memory"
)

// --- Mock implementations ---

type mockCatalog struct {
	products []product.Product
	err      error
}

func (m *mockCatalog) ListProducts(context.Context, product.Filter) ([]product.Product, error) {
	return m.products, m.err
}

type updateCall struct {
	id        string
	quantity  int
	totalBill decimal.Decimal
}

type mockStore struct {
	lines     []Line
	listErr   error
	updateErr error
	createErr error
	deleteErr map[string]error

	updates []updateCall
	deleted []string
	created []Line
}

func (m *mockStore) ListLines(context.Context, string) ([]Line, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]Line(nil), m.lines...), nil
}

func (m *mockStore) UpdateLine(_ context.Context, id string, quantity int, totalBill decimal.Decimal) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, updateCall{id: id, quantity: quantity, totalBill: totalBill})
	return nil
}

func (m *mockStore) DeleteLine(_ context.Context, id string) error {
	if err := m.deleteErr[id]; err != nil {
		return err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockStore) CreateLine(_ context.Context, l Line) (Line, error) {
	if m.createErr != nil {
		return Line{}, m.createErr
	}
	l.ID = "new-" + l.ProductName
	m.created = append(m.created, l)
	return l, nil
}

type mockOrders struct {
	created []order.Order
	failOn  int
}

func (m *mockOrders) CreateOrder(_ context.Context, o order.Order) (string, error) {
	if m.failOn > 0 && len(m.created)+1 == m.failOn {
		return "", errors.New("order service down")
	}
	m.created = append(m.created, o)
	return "order-" + o.ShopID, nil
}

func (m *mockOrders) ListOrders(context.Context, order.Filter) ([]order.Order, error) {
	return m.created, nil
}

func (m *mockOrders) UpdateOrderStatus(context.Context, string, order.Status) error { return nil }

func (m *mockOrders) DeleteOrder(context.Context, string) error { return nil }

type mockPublisher struct {
	events []OrderPlaced
	err    error
}

func (m *mockPublisher) PublishOrderPlaced(_ context.Context, ev OrderPlaced) error {
	m.events = append(m.events, ev)
	return m.err
}

// --- Helpers ---

var customer = session.Session{Role: session.RoleCustomer, UserEmail: "a@b.c"}

type fixture struct {
	engine  *Engine
	catalog *mockCatalog
	store   *mockStore
	orders  *mockOrders
	events  *mockPublisher
	log     *memory.CleanupLog
}

func newFixture(t *testing.T, lines []Line, products []product.Product) *fixture {
	t.Helper()
	f := &fixture{
		catalog: &mockCatalog{products: products},
		store:   &mockStore{lines: lines, deleteErr: map[string]error{}},
		orders:  &mockOrders{},
		events:  &mockPublisher{},
		log:     memory.NewCleanupLog(),
	}
	runner, err := cleanup.NewRunner(f.store, f.log, cleanup.WithGone(ErrLineNotFound))
	require.NoError(t, err)

	f.engine = NewEngine(customer, f.catalog, f.store, f.orders, runner, f.events)
	require.NoError(t, f.engine.Load(context.Background()))
	return f
}

func penCart() ([]Line, []product.Product) {
	return []Line{
			{ID: "pen", UserEmail: "a@b.c", ProductName: "Pen", ShopID: "s1", ShopName: "Corner", Quantity: 2, TotalBill: dec("20.00")},
		}, []product.Product{
			{Name: "Pen", ShopID: "s1", Price: dec("11.00"), Available: 5},
		}
}

// --- Tests ---

func TestEngine_Load(t *testing.T) {
	lines, products := penCart()
	f := newFixture(t, lines, products)

	merged := f.engine.Lines()
	require.Len(t, merged, 1)
	assert.Equal(t, 5, merged[0].Stock)

	f.store.lines = append(f.store.lines, Line{
		ID: "ink", UserEmail: "a@b.c", ProductName: "Ink", ShopID: "s1", ShopName: "Corner", Quantity: 1, TotalBill: dec("4.50"),
	})
	require.NoError(t, f.engine.Load(context.Background()))
	merged = f.engine.Lines()
	require.Len(t, merged, 2)
	assert.Equal(t, StateOutOfStock, merged[1].State())

	f.store.listErr = errors.New("boom")
	err := f.engine.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list cart lines")
	assert.Len(t, f.engine.Lines(), 2, "failed load keeps previous state")
}

func TestEngine_ChangeQuantity_PenScenario(t *testing.T) {
	lines, products := penCart()
	f := newFixture(t, lines, products)
	ctx := context.Background()

	ch, err := f.engine.ChangeQuantity(ctx, "pen", 3)
	require.NoError(t, err)
	assert.True(t, ch.Accepted)
	assert.Equal(t, "30.00", ch.Line.TotalBill.StringFixed(2))

	ch, err = f.engine.ChangeQuantity(ctx, "pen", 6)
	var exceeds *ExceedsStockError
	require.ErrorAs(t, err, &exceeds)
	assert.Equal(t, 6, exceeds.Requested)
	assert.Equal(t, 5, exceeds.Stock)
	assert.False(t, ch.Accepted)

	got := f.engine.Lines()[0]
	assert.Equal(t, 3, got.Quantity)
	assert.Equal(t, "30.00", got.TotalBill.StringFixed(2))
	assert.Len(t, f.store.updates, 1)
}

func TestEngine_ChangeQuantity_Rejections(t *testing.T) {
	lines, products := penCart()
	lines = append(lines, Line{ID: "gone", ProductName: "Eraser", ShopID: "s1", Quantity: 1, TotalBill: dec("1")})

	tests := []struct {
		name     string
		lineID   string
		quantity int
		wantErr  func(t *testing.T, err error)
	}{
		{
			name: "zero", lineID: "pen", quantity: 0,
			wantErr: func(t *testing.T, err error) { require.NoError(t, err) },
		},
		{
			name: "negative", lineID: "pen", quantity: -4,
			wantErr: func(t *testing.T, err error) { require.NoError(t, err) },
		},
		{
			name: "above stock", lineID: "pen", quantity: 6,
			wantErr: func(t *testing.T, err error) {
				var exceeds *ExceedsStockError
				require.ErrorAs(t, err, &exceeds)
			},
		},
		{
			name: "out of stock", lineID: "gone", quantity: 1,
			wantErr: func(t *testing.T, err error) {
				var exceeds *ExceedsStockError
				require.ErrorAs(t, err, &exceeds)
				assert.Zero(t, exceeds.Stock)
			},
		},
		{
			name: "unknown line", lineID: "nope", quantity: 1,
			wantErr: func(t *testing.T, err error) { require.ErrorIs(t, err, ErrLineNotFound) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, lines, products)
			before := f.engine.Lines()

			ch, err := f.engine.ChangeQuantity(context.Background(), tt.lineID, tt.quantity)
			tt.wantErr(t, err)
			assert.False(t, ch.Accepted)
			assert.Empty(t, f.store.updates)
			assert.Equal(t, before, f.engine.Lines())
		})
	}
}

func TestEngine_ChangeQuantity_Reapply(t *testing.T) {
	lines := []Line{{ID: "l1", ProductName: "Pen", ShopID: "s1", Quantity: 3, TotalBill: dec("10.00")}}
	products := []product.Product{{Name: "Pen", ShopID: "s1", Available: 10}}
	f := newFixture(t, lines, products)
	ctx := context.Background()

	first, err := f.engine.ChangeQuantity(ctx, "l1", 7)
	require.NoError(t, err)
	second, err := f.engine.ChangeQuantity(ctx, "l1", 7)
	require.NoError(t, err)

	assert.Equal(t, "23.33", first.Line.TotalBill.StringFixed(2))
	assert.True(t, first.Line.TotalBill.Equal(second.Line.TotalBill))
}

func TestEngine_ChangeQuantity_StoreFailure(t *testing.T) {
	lines, products := penCart()
	f := newFixture(t, lines, products)
	f.store.updateErr = errors.New("503")

	ch, err := f.engine.ChangeQuantity(context.Background(), "pen", 4)
	require.Error(t, err)
	assert.False(t, ch.Accepted)

	got := f.engine.Lines()[0]
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, "20.00", got.TotalBill.StringFixed(2))
}

func TestEngine_Remove(t *testing.T) {
	lines, products := penCart()
	f := newFixture(t, lines, products)
	ctx := context.Background()

	f.store.deleteErr["pen"] = errors.New("503")
	require.Error(t, f.engine.Remove(ctx, "pen"))
	assert.Len(t, f.engine.Lines(), 1)

	delete(f.store.deleteErr, "pen")
	require.NoError(t, f.engine.Remove(ctx, "pen"))
	assert.Empty(t, f.engine.Lines())

	require.ErrorIs(t, f.engine.Remove(ctx, "pen"), ErrLineNotFound)
}

func TestEngine_AddLine(t *testing.T) {
	_, products := penCart()
	f := newFixture(t, nil, products)
	ctx := context.Background()

	line, err := f.engine.AddLine(ctx, AddRequest{ProductName: "Pen", ShopID: "s1", ShopName: "Corner", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "22.00", line.TotalBill.StringFixed(2))
	assert.Equal(t, "a@b.c", line.UserEmail)
	assert.Len(t, f.engine.Lines(), 1)

	_, err = f.engine.AddLine(ctx, AddRequest{ProductName: "Pen", ShopID: "s1", Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.engine.AddLine(ctx, AddRequest{ProductName: "Pen", ShopID: "s1", Quantity: 6})
	var exceeds *ExceedsStockError
	require.ErrorAs(t, err, &exceeds)

	_, err = f.engine.AddLine(ctx, AddRequest{ProductName: "Pen", ShopID: "s9", Quantity: 1})
	require.ErrorIs(t, err, product.ErrNotFound)

	f.store.createErr = errors.New("503")
	_, err = f.engine.AddLine(ctx, AddRequest{ProductName: "Pen", ShopID: "s1", Quantity: 1})
	require.Error(t, err)
	assert.Len(t, f.engine.Lines(), 1)
}

func TestEngine_PlaceOrder(t *testing.T) {
	lines := []Line{
		{ID: "l1", ProductName: "Pen", ShopID: "s1", ShopName: "Corner", Quantity: 2, TotalBill: dec("20.00")},
		{ID: "l2", ProductName: "Ink", ShopID: "s1", ShopName: "Corner", Quantity: 1, TotalBill: dec("4.50")},
	}
	f := newFixture(t, lines, nil)

	p, err := f.engine.PlaceOrder(context.Background(), OrderDraft{MobileNo: "0123", Address: "1 Main St"})
	require.NoError(t, err)
	require.Len(t, p.Orders, 1)
	assert.Equal(t, "order-s1", p.Orders[0].ID)
	assert.Equal(t, "a@b.c", p.Orders[0].Email, "email defaults to the session")
	assert.NoError(t, p.CleanupErr())
	assert.Empty(t, f.engine.Lines())
	assert.Equal(t, []string{"l1", "l2"}, f.store.deleted)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "24.50", f.events.events[0].Total.StringFixed(2))
	assert.Equal(t, 2, f.events.events[0].Items)
}

func TestEngine_PlaceOrder_PartialCleanup(t *testing.T) {
	lines := []Line{
		{ID: "l1", ProductName: "Pen", ShopID: "s1", ShopName: "Corner", Quantity: 2, TotalBill: dec("20.00")},
		{ID: "l2", ProductName: "Ink", ShopID: "s1", ShopName: "Corner", Quantity: 1, TotalBill: dec("4.50")},
	}
	f := newFixture(t, lines, nil)
	f.store.deleteErr["l2"] = errors.New("503")
	ctx := context.Background()

	p, err := f.engine.PlaceOrder(ctx, validDraft)
	require.NoError(t, err, "order placement succeeds")
	require.Len(t, p.Orders, 1)

	var linesErr *cleanup.LinesError
	require.ErrorAs(t, p.CleanupErr(), &linesErr)
	assert.Equal(t, []string{"l2"}, linesErr.Lines)

	remaining := f.engine.Lines()
	require.Len(t, remaining, 1)
	assert.Equal(t, "l2", remaining[0].ID)

	// Only the failed task is retried.
	delete(f.store.deleteErr, "l2")
	runner, err := cleanup.NewRunner(f.store, f.log)
	require.NoError(t, err)
	rep, err := runner.Retry(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"l2"}, rep.Done)
	assert.Equal(t, []string{"l1", "l2"}, f.store.deleted)
}

func TestEngine_PlaceOrder_PerShop(t *testing.T) {
	lines := []Line{
		{ID: "l1", ProductName: "Pen", ShopID: "s1", ShopName: "Corner", Quantity: 1, TotalBill: dec("10")},
		{ID: "l2", ProductName: "Cup", ShopID: "s2", ShopName: "Kiosk", Quantity: 1, TotalBill: dec("5")},
	}

	t.Run("all accepted", func(t *testing.T) {
		f := newFixture(t, lines, nil)
		p, err := f.engine.PlaceOrder(context.Background(), validDraft)
		require.NoError(t, err)
		require.Len(t, p.Orders, 2)
		assert.Equal(t, "Kiosk", f.orders.created[1].ShopName)
		assert.Empty(t, f.engine.Lines())
	})

	t.Run("second shop rejected", func(t *testing.T) {
		f := newFixture(t, lines, nil)
		f.orders.failOn = 2

		p, err := f.engine.PlaceOrder(context.Background(), validDraft)
		require.Error(t, err)
		require.NotNil(t, p)
		require.Len(t, p.Orders, 1)
		assert.Equal(t, "order-s1", p.Orders[0].ID)

		remaining := f.engine.Lines()
		require.Len(t, remaining, 1)
		assert.Equal(t, "l2", remaining[0].ID)
	})
}

func TestEngine_PlaceOrder_Validation(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		assert.Zero(t, f.engine.Totals().Quantity)

		_, err := f.engine.PlaceOrder(context.Background(), validDraft)
		require.ErrorIs(t, err, ErrEmptyCart)
		assert.Empty(t, f.orders.created)
	})

	t.Run("missing address", func(t *testing.T) {
		lines, products := penCart()
		f := newFixture(t, lines, products)

		_, err := f.engine.PlaceOrder(context.Background(), OrderDraft{MobileNo: "0123"})
		var missing *MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "address", missing.Field)
		assert.Empty(t, f.orders.created)
	})
}

func TestEngine_PlaceOrder_PublishFailure(t *testing.T) {
	lines, products := penCart()
	f := newFixture(t, lines, products)
	f.events.err = errors.New("broker down")

	p, err := f.engine.PlaceOrder(context.Background(), validDraft)
	require.NoError(t, err)
	assert.Len(t, p.Orders, 1)
}

func TestEngine_PlaceOrder_SagaOwner(t *testing.T) {
	lines := []Line{
		{ID: "l1", ProductName: "Pen", ShopID: "s1", ShopName: "Corner", Quantity: 2, TotalBill: dec("20.00")},
	}
	f := newFixture(t, lines, nil)
	ctx := context.Background()

	p, err := f.engine.PlaceOrder(ctx, OrderDraft{Email: "gift@x.y", MobileNo: "0123", Address: "1 Main St"})
	require.NoError(t, err)
	require.Len(t, p.Reports, 1)
	assert.Equal(t, "gift@x.y", p.Orders[0].Email)

	s, err := f.log.Saga(ctx, p.Reports[0].SagaID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", s.UserEmail, "saga belongs to the cart owner")
}
