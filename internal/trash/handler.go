package trash

import (
	"net/http"

	"atlasgym/internal/errs"
	"atlasgym/internal/httpx"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, ok := h.service.Get(id)
	if !ok {
		httpx.Error(w, errs.NotFound("trash entry", id))
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}
