// internal/membership/service.go
package membership

import (
	"context"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/ledger"
	"atlasgym/internal/plans"
	"atlasgym/internal/store"
	"atlasgym/internal/trash"
)

// Service defines the membership lifecycle.
type Service interface {
	Register(ctx context.Context, s auth.Session, planKey string, participants []Participant) (*Registration, error)
	Renew(ctx context.Context, s auth.Session, memberID, planKey string) (*Renewal, error)
	Edit(ctx context.Context, s auth.Session, memberID, name, phone string) (*Member, error)
	// Delete moves the member and its whole group to the trash and returns
	// how many members moved. A nil challenge is a cancellation: nothing
	// happens and (0, nil) is returned.
	Delete(ctx context.Context, s auth.Session, memberID string, challenge *string) (int, error)
	Restore(ctx context.Context, s auth.Session, trashID string) (*Member, error)
	Purge(ctx context.Context, s auth.Session, trashID string) error

	Get(id string) (Member, bool)
	ByCode(code string) (Member, bool)
	Group(memberID string) ([]Member, error)
	List(filter Filter, search string, asOf time.Time) []View
	All() []Member
	Close()
}

// VisitIndex tells which members came in on a given day.
type VisitIndex interface {
	VisitedOn(code string, day time.Time) bool
}

// Deps are the collaborators of the lifecycle engine.
type Deps struct {
	Store     store.Store
	Plans     *plans.Catalog
	Ledger    ledger.Service
	Trash     trash.Service
	Audit     audit.Log
	Challenge *auth.Challenge
	Visits    VisitIndex
	Codes     CodeSource
	Now       func() time.Time
	Location  *time.Location
}
