package shop

import (
	"net/http"

	"atlasgym/internal/auth"
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
	r.Get("/", h.handleInventory)
	r.Post("/", h.handleCreate)
	r.Get("/low", h.handleLowStock)
	r.Get("/{id}", h.handleGet)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/stock", h.handleAddStock)
}

func (h *Handler) handleInventory(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Inventory())
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.LowStock())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := h.service.Get(id)
	if !ok {
		httpx.Error(w, errs.NotFound("product", id))
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	var p Product
	if err := httpx.Bind(r, &p); err != nil {
		httpx.Error(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), sess, p)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := h.service.Delete(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stockRequest struct {
	Qty int `json:"qty" validate:"gt=0"`
}

func (h *Handler) handleAddStock(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	var req stockRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	p, err := h.service.AddStock(r.Context(), sess, chi.URLParam(r, "id"), req.Qty)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type checkoutRequest struct {
	Lines []CartLine `json:"lines"`
}

// HandleCheckout serves POST /checkout.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	var req checkoutRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	sale, err := h.service.Checkout(r.Context(), sess, req.Lines)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}
