package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/tractor-shop/internal/domain/order"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := order.Filter{
		Status:     order.Status(q.Get("status")),
		CustomerID: q.Get("customerId"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, r, &order.ValidationError{Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		f.Limit = limit
	}

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Create(r.Context(), req.CustomerID, req.Notes)
	writeOrder(w, r, http.StatusCreated, o, err)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	writeOrder(w, r, http.StatusOK, o, err)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	discount, err := req.Discount.lineDiscount()
	if err != nil {
		writeError(w, r, &order.ValidationError{Field: "discount", Message: err.Error()})
		return
	}

	o, err := h.orders.AddItem(r.Context(), chi.URLParam(r, "orderID"), order.AddItemRequest{
		Type:        order.ItemType(req.ItemType),
		ReferenceID: req.ReferenceID,
		Name:        req.Name,
		UnitPrice:   req.UnitPrice,
		Quantity:    req.Quantity,
		Discount:    discount,
	})
	writeOrder(w, r, http.StatusOK, o, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RemoveItem(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "itemID"))
	writeOrder(w, r, http.StatusOK, o, err)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.SetQuantity(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "itemID"), req.Quantity)
	writeOrder(w, r, http.StatusOK, o, err)
}

func (h *Handler) setItemDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	discount, err := req.lineDiscount()
	if err != nil {
		writeError(w, r, &order.ValidationError{Field: "discount", Message: err.Error()})
		return
	}

	o, err := h.orders.SetItemDiscount(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "itemID"), discount)
	writeOrder(w, r, http.StatusOK, o, err)
}

func (h *Handler) setOrderDiscount(w http.ResponseWriter, r *http.Request) {
	var req orderDiscountRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.SetOrderDiscount(r.Context(), chi.URLParam(r, "orderID"), req.Amount)
	writeOrder(w, r, http.StatusOK, o, err)
}

func (h *Handler) startOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Start)
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Complete)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Cancel)
}

func (h *Handler) transition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, orderID string) (*order.Order, error),
) {
	o, err := fn(r.Context(), chi.URLParam(r, "orderID"))
	writeOrder(w, r, http.StatusOK, o, err)
}

func writeOrder(w http.ResponseWriter, r *http.Request, status int, o *order.Order, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) { encodeOrder(e, o) })
}
