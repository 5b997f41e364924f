package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/tractor-shop/internal/domain/catalog"
	"github.com/xenking/tractor-shop/internal/domain/customer"
	"github.com/xenking/tractor-shop/internal/domain/order"
	"github.com/xenking/tractor-shop/internal/domain/pricing"
)

// writeError maps domain errors to HTTP responses. Unknown errors are logged
// and reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidDiscount *pricing.InvalidDiscountError
		discountRange   *pricing.DiscountRangeError
		fieldErrs       validator.ValidationErrors
		validation      *order.ValidationError
		quantity        *order.InvalidQuantityError
		transition      *order.InvalidTransitionError
		stock           *catalog.InsufficientStockError
		body            *bodyError
	)

	switch {
	case errors.As(err, &invalidDiscount):
		writeJSON(w, http.StatusBadRequest, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusBadRequest) })
				e.Field("error", func(e *jx.Encoder) { e.Str("invalid_discount") })
				e.Field("message", func(e *jx.Encoder) {
					e.Str(fmt.Sprintf("order discount %s exceeds the maximum permissible discount of %s",
						invalidDiscount.Requested.String(), discountCeiling(invalidDiscount.Payable).StringFixed(2)))
				})
				e.Field("maxDiscount", func(e *jx.Encoder) { money(e, discountCeiling(invalidDiscount.Payable)) })
				e.Field("requested", func(e *jx.Encoder) { money(e, invalidDiscount.Requested) })
			})
		})
	case errors.As(err, &body):
		writeMessage(w, http.StatusBadRequest, "bad_request", body.Error())
	case errors.As(err, &fieldErrs):
		writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusUnprocessableEntity) })
				e.Field("error", func(e *jx.Encoder) { e.Str("validation_failed") })
				e.Field("message", func(e *jx.Encoder) { e.Str("request validation failed") })
				e.Field("fields", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						for _, fe := range fieldErrs {
							e.Field(fe.Field(), func(e *jx.Encoder) { e.Str(fieldMessage(fe)) })
						}
					})
				})
			})
		})
	case errors.As(err, &validation),
		errors.As(err, &quantity),
		errors.As(err, &discountRange),
		errors.Is(err, customer.ErrNameRequired):
		writeMessage(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrUnavailable),
		errors.As(err, &stock):
		writeMessage(w, http.StatusUnprocessableEntity, "catalog_unavailable", err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, customer.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, order.ErrNotDraft),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrVersionConflict),
		errors.As(err, &transition):
		writeMessage(w, http.StatusConflict, "conflict", err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func writeMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("error", func(e *jx.Encoder) { e.Str(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "email":
		return "must be a valid email address"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
