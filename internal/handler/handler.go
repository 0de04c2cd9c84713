// Package handler serves the storefront JSON API consumed by the browser
// front-end. Every cart request builds a cart.Engine for the caller's
// session, loads it and runs one engine operation.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/cleanup"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
)

// SessionHeader carries the session token issued at login.
const SessionHeader = "X-Session-Token"

// Sessions issues and resolves session tokens.
type Sessions interface {
	Login(ctx context.Context, s session.Session) (string, error)
	Resolve(ctx context.Context, token string) (*session.Session, error)
	Logout(ctx context.Context, token string) error
}

// Cleanups reads recorded checkout cleanup sagas.
type Cleanups interface {
	Saga(ctx context.Context, id string) (*cleanup.Saga, error)
}

// Deps are the collaborators of the Handler.
type Deps struct {
	Sessions Sessions
	Catalog  product.Catalog
	Cart     cart.Store
	Orders   order.Service
	Cleaner  cart.Cleaner
	Cleanups Cleanups
	Events   cart.Publisher
}

// Handler implements the storefront routes.
type Handler struct {
	sessions Sessions
	catalog  product.Catalog
	cart     cart.Store
	orders   order.Service
	desk     *order.Desk
	cleaner  cart.Cleaner
	cleanups Cleanups
	events   cart.Publisher
}

// NewHandler constructs a Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		sessions: d.Sessions,
		catalog:  d.Catalog,
		cart:     d.Cart,
		orders:   d.Orders,
		desk:     order.NewDesk(d.Orders),
		cleaner:  d.Cleaner,
		cleanups: d.Cleanups,
		events:   d.Events,
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	customer := []session.Role{session.RoleCustomer, session.RoleAdmin}
	shop := []session.Role{session.RoleShopkeeper}

	mux.HandleFunc("POST /api/session", h.Login)
	mux.HandleFunc("DELETE /api/session", h.Logout)

	mux.HandleFunc("GET /api/products", h.ListProducts)

	mux.Handle("GET /api/cart", h.authenticate(h.GetCart, customer...))
	mux.Handle("POST /api/cart", h.authenticate(h.AddToCart, customer...))
	mux.Handle("PUT /api/cart/{id}", h.authenticate(h.ChangeQuantity, customer...))
	mux.Handle("DELETE /api/cart/{id}", h.authenticate(h.RemoveFromCart, customer...))
	mux.Handle("POST /api/checkout", h.authenticate(h.Checkout, customer...))
	mux.Handle("GET /api/checkout/{id}", h.authenticate(h.CheckoutStatus, customer...))
	mux.Handle("GET /api/orders", h.authenticate(h.CustomerOrders, customer...))

	mux.Handle("GET /api/shop/orders", h.authenticate(h.ShopOrders, shop...))
	mux.Handle("PUT /api/shop/orders/{id}/complete", h.authenticate(h.CompleteOrder, shop...))
	mux.Handle("DELETE /api/shop/orders/{id}", h.authenticate(h.DeleteOrder, shop...))
}

// engine loads the cart of the session in ctx.
func (h *Handler) engine(ctx context.Context) (*cart.Engine, error) {
	s, ok := session.From(ctx)
	if !ok {
		return nil, session.ErrUnauthorized
	}
	e := cart.NewEngine(s, h.catalog, h.cart, h.orders, h.cleaner, h.events)
	if err := e.Load(ctx); err != nil {
		return nil, err
	}
	return e, nil
}
