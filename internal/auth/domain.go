// Package auth resolves operator sessions: credential verification, the
// secondary challenge for destructive actions, section visibility and the
// bearer tokens that carry a session between requests.
package auth

import (
	"context"
	"fmt"
	"time"

	"atlasgym/internal/errs"
)

// Role of an operator.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleDev   Role = "dev"
	RoleStaff Role = "staff"
)

// Elevated reports whether role may run privileged actions.
func Elevated(role Role) bool {
	return role == RoleAdmin || role == RoleDev
}

// Valid reports whether role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleDev || r == RoleStaff
}

// Session is the explicit context every operation runs under.
type Session struct {
	// UserID is the users/{id} key, empty for configured operator accounts.
	UserID   string    `json:"uid,omitempty"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	Hidden   []string  `json:"hidden,omitempty"`
	IssuedAt time.Time `json:"issuedAt"`
}

func (s Session) Elevated() bool { return Elevated(s.Role) }

// Sections the session may open.
func (s Session) Sections() []string { return VisibleSections(s.Role, s.Hidden) }

// RequireElevated fails with ErrAccessDenied unless the session is admin or dev.
func RequireElevated(s Session, action string) error {
	if !s.Elevated() {
		return fmt.Errorf("%s requires admin or dev: %w", action, errs.ErrAccessDenied)
	}
	return nil
}

// RequireDev fails with ErrAccessDenied unless the session is dev.
func RequireDev(s Session, action string) error {
	if s.Role != RoleDev {
		return fmt.Errorf("%s requires dev: %w", action, errs.ErrAccessDenied)
	}
	return nil
}

// User is a row of the users collection.
type User struct {
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name"`
	Username       string   `json:"username"`
	Role           Role     `json:"role"`
	PasswordHash   string   `json:"passwordHash"`
	Salt           string   `json:"salt"`
	HiddenSections []string `json:"hiddenSections,omitempty"`
	// SessionsValidAfter rejects every token issued at or before it.
	SessionsValidAfter time.Time `json:"sessionsValidAfter"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Revoked reports whether a token issued at issuedAt was ended by a forced
// logout.
func (u User) Revoked(issuedAt time.Time) bool {
	return !u.SessionsValidAfter.IsZero() && !issuedAt.After(u.SessionsValidAfter)
}

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached by Middleware.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
