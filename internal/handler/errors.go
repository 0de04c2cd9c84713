package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/cleanup"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/internal/storage/rest"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var (
		badRequest *BadRequestError
		invalid    *session.InvalidError
		exceeds    *cart.ExceedsStockError
		missing    *cart.MissingFieldError
		corrupt    *cart.CorruptLineError
		notOwned   *order.NotOwnedError
		complete   *order.AlreadyCompleteError
	)
	switch {
	case errors.As(err, &badRequest),
		errors.As(err, &invalid),
		errors.Is(err, order.ErrMissingFilter):
		return http.StatusBadRequest
	case errors.As(err, &exceeds),
		errors.As(err, &complete):
		return http.StatusConflict
	case errors.As(err, &missing),
		errors.As(err, &corrupt),
		errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrMultipleShops):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, cleanup.ErrSagaNotFound),
		errors.As(err, &notOwned):
		return http.StatusNotFound
	case errors.Is(err, session.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, rest.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the error body for err. Server-side failures are
// logged and their details are not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		trace.SpanFromContext(r.Context()).RecordError(err)
		zctx.From(r.Context()).Error("Request error",
			zap.Int("status", code),
			zap.Error(err),
		)
		msg = http.StatusText(code)
	}
	httpmiddleware.WriteError(w, code, msg)
}
