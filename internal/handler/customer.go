package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/tractor-shop/internal/domain/customer"
)

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range customers {
				encodeCustomer(e, &customers[i])
			}
		})
	})
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.customers.Create(r.Context(), customer.Customer{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCustomer(e, c) })
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.Get(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCustomer(e, c) })
}
