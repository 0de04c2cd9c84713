package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/session"
)

// CustomerOrders lists the orders placed by the session user. Admins may
// look up another customer with ?email=.
func (h *Handler) CustomerOrders(w http.ResponseWriter, r *http.Request) {
	s, _ := session.From(r.Context())
	email := s.UserEmail
	if q := r.URL.Query().Get("email"); q != "" && s.Role == session.RoleAdmin {
		email = q
	}
	orders, err := h.desk.ForCustomer(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOrders(w, orders)
}

// ShopOrders lists the orders addressed to the shopkeeper's shop.
func (h *Handler) ShopOrders(w http.ResponseWriter, r *http.Request) {
	s, _ := session.From(r.Context())
	orders, err := h.desk.ForShop(r.Context(), s.ShopName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOrders(w, orders)
}

// CompleteOrder marks an order of the shopkeeper's shop as received.
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	s, _ := session.From(r.Context())
	o, err := h.desk.Complete(r.Context(), s.ShopName, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, *o)
	})
}

// DeleteOrder removes an order of the shopkeeper's shop.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	s, _ := session.From(r.Context())
	if err := h.desk.Delete(r.Context(), s.ShopName, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeOrders(w http.ResponseWriter, orders []order.Order) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrders(e, orders)
	})
}
