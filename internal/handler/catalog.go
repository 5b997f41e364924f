package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.catalog.ListServices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range services {
				encodeService(e, &services[i])
			}
		})
	})
}

func (h *Handler) listParts(w http.ResponseWriter, r *http.Request) {
	parts, err := h.catalog.ListParts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range parts {
				encodePart(e, &parts[i])
			}
		})
	})
}
