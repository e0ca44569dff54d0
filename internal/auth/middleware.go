package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"atlasgym/internal/errs"
	"atlasgym/internal/httpx"
)

// Middleware resolves the bearer token into a Session. Sessions of store
// users pick up their current hidden sections on every request. Tokens
// issued before the user's last forced logout are rejected until the user
// logs in again.
func Middleware(tokens *Tokens, users *Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				httpx.Error(w, errs.ErrUnauthenticated)
				return
			}
			sess, err := tokens.Parse(raw)
			if err != nil {
				httpx.Error(w, err)
				return
			}

			if sess.UserID != "" && users != nil {
				u, found := users.ByID(sess.UserID)
				if !found {
					httpx.Error(w, errs.ErrUnauthenticated)
					return
				}
				if u.Revoked(sess.IssuedAt) {
					slog.Info("revoked session rejected", "user", u.Username)
					httpx.Error(w, errs.ErrUnauthenticated)
					return
				}
				sess.Hidden = u.HiddenSections
				sess.Role = u.Role
				sess.Name = u.Name
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
