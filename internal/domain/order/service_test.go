package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockService struct {
	orders     []Order
	lastFilter Filter
	listErr    error
	updateErr  error
	deleteErr  error
	updated    map[string]Status
	deleted    []string
}

func (m *mockService) CreateOrder(_ context.Context, _ Order) (string, error) {
	return "", nil
}

func (m *mockService) ListOrders(_ context.Context, f Filter) ([]Order, error) {
	m.lastFilter = f
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.orders, nil
}

func (m *mockService) UpdateOrderStatus(_ context.Context, id string, s Status) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.updated == nil {
		m.updated = make(map[string]Status)
	}
	m.updated[id] = s
	return nil
}

func (m *mockService) DeleteOrder(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

// --- Tests ---

func TestOrder_Total(t *testing.T) {
	o := Order{Products: []Item{
		{ProductName: "Pen", Quantity: 3, Price: decimal.RequireFromString("10.00")},
		{ProductName: "Ink", Quantity: 1, Price: decimal.RequireFromString("2.555")},
	}}
	assert.True(t, decimal.RequireFromString("32.56").Equal(o.Total()), "got %s", o.Total())
}

func TestDesk_ForCustomer(t *testing.T) {
	svc := &mockService{orders: []Order{{ID: "o1"}}}
	d := NewDesk(svc)

	got, err := d.ForCustomer(context.Background(), "a@b.c")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, Filter{Email: "a@b.c"}, svc.lastFilter)

	_, err = d.ForCustomer(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingFilter)
}

func TestDesk_ForShop_UpstreamError(t *testing.T) {
	d := NewDesk(&mockService{listErr: errors.New("boom")})

	_, err := d.ForShop(context.Background(), "Corner")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list shop orders")
}

func TestDesk_Complete(t *testing.T) {
	t.Run("pending order completes", func(t *testing.T) {
		svc := &mockService{orders: []Order{{ID: "o1", ShopName: "Corner", Status: StatusPending}}}
		d := NewDesk(svc)

		o, err := d.Complete(context.Background(), "Corner", "o1")
		require.NoError(t, err)
		assert.Equal(t, StatusComplete, o.Status)
		assert.Equal(t, StatusComplete, svc.updated["o1"])
	})

	t.Run("complete order is rejected", func(t *testing.T) {
		svc := &mockService{orders: []Order{{ID: "o1", Status: StatusComplete}}}
		d := NewDesk(svc)

		_, err := d.Complete(context.Background(), "Corner", "o1")
		var acErr *AlreadyCompleteError
		require.ErrorAs(t, err, &acErr)
		assert.Empty(t, svc.updated)
	})

	t.Run("foreign order is rejected", func(t *testing.T) {
		d := NewDesk(&mockService{})

		_, err := d.Complete(context.Background(), "Corner", "o9")
		var noErr *NotOwnedError
		require.ErrorAs(t, err, &noErr)
		assert.Equal(t, "o9", noErr.OrderID)
	})

	t.Run("update failure is wrapped", func(t *testing.T) {
		svc := &mockService{
			orders:    []Order{{ID: "o1", Status: StatusPending}},
			updateErr: errors.New("upstream down"),
		}
		_, err := NewDesk(svc).Complete(context.Background(), "Corner", "o1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "complete order o1")
	})
}

func TestDesk_Delete(t *testing.T) {
	svc := &mockService{orders: []Order{{ID: "o1"}}}
	d := NewDesk(svc)

	require.NoError(t, d.Delete(context.Background(), "Corner", "o1"))
	assert.Equal(t, []string{"o1"}, svc.deleted)

	err := d.Delete(context.Background(), "Corner", "missing")
	var noErr *NotOwnedError
	require.ErrorAs(t, err, &noErr)
}
