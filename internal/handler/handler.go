// Package handler exposes the shop over HTTP: customers, the service and parts
// catalogs, and order editing with live recalculation.
package handler

import (
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/tractor-shop/internal/domain/catalog"
	"github.com/xenking/tractor-shop/internal/domain/customer"
	"github.com/xenking/tractor-shop/internal/domain/order"
)

const maxBodyBytes = 1 << 20

// Handler serves the /api routes, delegating business logic to the domain
// services.
type Handler struct {
	orders    *order.Service
	customers *customer.Service
	catalog   catalog.Repository
	validate  *validator.Validate
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orders *order.Service,
	customers *customer.Service,
	catalogRepo catalog.Repository,
) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		orders:    orders,
		customers: customers,
		catalog:   catalogRepo,
		validate:  v,
	}
}

// Routes returns a router with every API endpoint, to be mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Get("/{customerID}", h.getCustomer)
	})

	r.Get("/services", h.listServices)
	r.Get("/parts", h.listParts)

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)

		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", h.getOrder)

			r.Post("/items", h.addItem)
			r.Delete("/items/{itemID}", h.removeItem)
			r.Put("/items/{itemID}/quantity", h.setQuantity)
			r.Put("/items/{itemID}/discount", h.setItemDiscount)
			r.Put("/discount", h.setOrderDiscount)

			r.Post("/start", h.startOrder)
			r.Post("/complete", h.completeOrder)
			r.Post("/cancel", h.cancelOrder)
		})
	})

	return r
}

// decoder is implemented by request bodies.
type decoder interface {
	Decode(d *jx.Decoder) error
}

// decodeBody reads and decodes the request body into req, then validates it.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, req decoder) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &bodyError{err: err}
	}
	if len(body) == 0 {
		return &bodyError{err: errors.New("empty body")}
	}
	if err := req.Decode(jx.DecodeBytes(body)); err != nil {
		return &bodyError{err: err}
	}
	return h.validate.Struct(req)
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
