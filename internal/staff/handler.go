package staff

import (
	"net/http"

	"atlasgym/internal/auth"
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
	r.Post("/", h.handleRegister)
	r.Post("/reset", h.handleReset)
	r.Delete("/{id}", h.handleDelete)
	r.Put("/{id}/sections", h.handleSections)
	r.Post("/{id}/logout", h.handleForceLogout)
}

// HistoryRoutes serves the action history.
func (h *Handler) HistoryRoutes(r chi.Router) {
	r.Get("/", h.handleHistory)
	r.Delete("/", h.handleClearHistory)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := auth.RequireElevated(sess, "list employees"); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.List())
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	var req NewEmployee
	if err := httpx.Bind(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	e, err := h.service.Register(r.Context(), sess, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := h.service.Delete(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sectionsRequest struct {
	Hidden []string `json:"hidden"`
}

func (h *Handler) handleSections(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	var req sectionsRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	e, err := h.service.SetHiddenSections(r.Context(), sess, chi.URLParam(r, "id"), req.Hidden)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) handleForceLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := h.service.ForceLogout(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	entries, err := h.service.History(r.Context(), sess)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	done, err := h.service.ClearHistory(r.Context(), sess, httpx.Challenge(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"cleared": done, "cancelled": !done})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	done, err := h.service.Reset(r.Context(), sess, httpx.Challenge(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"reset": done, "cancelled": !done})
}
