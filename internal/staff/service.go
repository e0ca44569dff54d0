package staff

import (
	"context"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/store"
)

// Service defines the administration operations.
type Service interface {
	Register(ctx context.Context, s auth.Session, e NewEmployee) (*Employee, error)
	Delete(ctx context.Context, s auth.Session, id string) error
	SetHiddenSections(ctx context.Context, s auth.Session, id string, sections []string) (*Employee, error)
	// ForceLogout revokes every token the user holds; they must log in again.
	ForceLogout(ctx context.Context, s auth.Session, id string) error
	List() []Employee
	History(ctx context.Context, s auth.Session) ([]audit.Entry, error)
	// ClearHistory empties the action history. A nil challenge cancels
	// and returns false, nil.
	ClearHistory(ctx context.Context, s auth.Session, challenge *string) (bool, error)
	// Reset deletes every collection. A nil challenge cancels.
	Reset(ctx context.Context, s auth.Session, challenge *string) (bool, error)
}

// Deps are the collaborators of staff administration.
type Deps struct {
	Store     store.Store
	Users     *auth.Directory
	Audit     audit.Log
	Challenge *auth.Challenge
	// Operators are the configured accounts; their usernames cannot be
	// registered.
	Operators *auth.StaticVerifier
	Now       func() time.Time
}
