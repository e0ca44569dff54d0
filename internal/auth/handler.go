package auth

import (
	"net/http"

	"atlasgym/internal/errs"
	"atlasgym/internal/httpx"
)

type Handler struct {
	auth *Authenticator
}

func NewHandler(a *Authenticator) *Handler {
	return &Handler{auth: a}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	sess, token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"session":  sess,
		"sections": sess.Sections(),
	})
}

func (h *Handler) HandleSections(w http.ResponseWriter, r *http.Request) {
	sess, ok := FromContext(r.Context())
	if !ok {
		httpx.Error(w, errs.ErrUnauthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"username": sess.Username,
		"role":     sess.Role,
		"sections": sess.Sections(),
	})
}
