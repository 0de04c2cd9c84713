package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/cleanup"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
)

// ListProducts lists the catalog, optionally narrowed to one shop.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), product.Filter{
		ShopID: r.URL.Query().Get("shopId"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			encodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

// GetCart returns the merged cart with its totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engine(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, eng)
}

func writeCart(w http.ResponseWriter, status int, eng *cart.Engine) {
	lines := eng.Lines()
	totals := eng.Totals()
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("lines")
		e.ArrStart()
		for _, l := range lines {
			encodeLine(e, l)
		}
		e.ArrEnd()
		e.FieldStart("totalQuantity")
		e.Int(totals.Quantity)
		e.FieldStart("totalBill")
		money(e, totals.Bill)
		e.ObjEnd()
	})
}

// AddToCart adds a catalog product to the cart.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	eng, err := h.engine(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := eng.AddLine(r.Context(), req.AddRequest); err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusCreated, eng)
}

// ChangeQuantity sets the quantity of one cart line. A quantity below one
// is ignored. A quantity above the stock is rejected with the unchanged
// line.
func (h *Handler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	eng, err := h.engine(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	change, err := eng.ChangeQuantity(r.Context(), r.PathValue("id"), *req.Quantity)
	var exceeds *cart.ExceedsStockError
	if err != nil && !errors.As(err, &exceeds) {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if exceeds != nil {
		status = http.StatusConflict
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("accepted")
		e.Bool(change.Accepted)
		if change.Line.ID != "" {
			e.FieldStart("line")
			encodeLine(e, change.Line)
		}
		if exceeds != nil {
			e.FieldStart("message")
			e.Str(exceeds.Error())
		}
		e.ObjEnd()
	})
}

// RemoveFromCart deletes one cart line.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engine(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := eng.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkout places one order per shop in the cart. Lines that could not be
// removed afterwards are listed in failedLines and retried in the
// background. When a later shop's order fails, the orders accepted before
// it are still returned alongside the error.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	eng, err := h.engine(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := eng.PlaceOrder(r.Context(), req.OrderDraft)
	if err != nil && (p == nil || len(p.Orders) == 0) {
		writeError(w, r, err)
		return
	}

	var failed []string
	var lines *cleanup.LinesError
	if cerr := p.CleanupErr(); cerr != nil && errors.As(cerr, &lines) {
		failed = lines.Lines
		zctx.From(r.Context()).Warn("Cart cleanup incomplete",
			zap.Strings("lines", failed),
			zap.Error(cerr),
		)
	}

	status := http.StatusCreated
	if err != nil {
		status = statusOf(err)
		zctx.From(r.Context()).Error("Checkout partially failed",
			zap.Int("accepted", len(p.Orders)),
			zap.Error(err),
		)
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("orders")
		encodeOrders(e, p.Orders)
		e.FieldStart("failedLines")
		e.ArrStart()
		for _, id := range failed {
			e.Str(id)
		}
		e.ArrEnd()
		e.FieldStart("cleanups")
		e.ArrStart()
		for _, rep := range p.Reports {
			e.Str(rep.SagaID)
		}
		e.ArrEnd()
		if err != nil {
			e.FieldStart("code")
			e.Int(status)
			e.FieldStart("message")
			e.Str(http.StatusText(status))
		}
		e.ObjEnd()
	})
}

// CheckoutStatus reports the cart cleanup progress of one placed order.
// Sagas of other customers are reported as not found.
func (h *Handler) CheckoutStatus(w http.ResponseWriter, r *http.Request) {
	s, _ := session.From(r.Context())
	saga, err := h.cleanups.Saga(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if saga.UserEmail != s.UserEmail && s.Role != session.RoleAdmin {
		writeError(w, r, cleanup.ErrSagaNotFound)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeSaga(e, saga)
	})
}
