// internal/membership/handler.go
package membership

import (
	"net/http"
	"time"

	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/httpx"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
	now     func() time.Time
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleRegister)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleEdit)
	r.Delete("/{id}", h.handleDelete)
	r.Get("/{id}/group", h.handleGroup)
	r.Post("/{id}/renew", h.handleRenew)
	r.Post("/{id}/restore", h.handleRestore)
	r.Delete("/{id}/purge", h.handlePurge)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := Filter(r.URL.Query().Get("filter"))
	if !filter.Valid() {
		httpx.Error(w, errs.Invalid("filter", "must be one of all active_only expiring inactive visits_today"))
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.List(filter, r.URL.Query().Get("q"), h.now()))
}

type registerRequest struct {
	Plan         string        `json:"plan" validate:"required"`
	Participants []Participant `json:"participants"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	var req registerRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	reg, err := h.service.Register(r.Context(), sess, req.Plan, req.Participants)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reg)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, ok := h.service.Get(id)
	if !ok {
		httpx.Error(w, errs.NotFound("member", id))
		return
	}
	httpx.JSON(w, http.StatusOK, ViewOf(m, h.now()))
}

func (h *Handler) handleGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.Group(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	now := h.now()
	views := make([]View, len(group))
	for i, m := range group {
		views[i] = ViewOf(m, now)
	}
	httpx.JSON(w, http.StatusOK, views)
}

type editRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	var req editRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	m, err := h.service.Edit(r.Context(), sess, chi.URLParam(r, "id"), req.Name, req.Phone)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

type renewRequest struct {
	Plan string `json:"plan" validate:"required"`
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	var req renewRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	ren, err := h.service.Renew(r.Context(), sess, chi.URLParam(r, "id"), req.Plan)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ren)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	n, err := h.service.Delete(r.Context(), sess, chi.URLParam(r, "id"), httpx.Challenge(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": n, "cancelled": n == 0})
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	m, err := h.service.Restore(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := h.service.Purge(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
