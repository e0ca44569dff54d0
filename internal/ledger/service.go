package ledger

import (
	"context"
	"time"

	"atlasgym/internal/auth"
	"atlasgym/internal/store"
	"atlasgym/internal/trash"
)

// Service defines the ledger operations.
type Service interface {
	// Post records an entry and returns its id. An amount that is not a
	// finite positive number creates nothing and returns "", nil.
	Post(ctx context.Context, s auth.Session, typ string, amount float64, desc string) (string, error)
	// PostOp builds the write for an entry so callers can commit it with
	// their own changes. ok is false when amount cannot be posted.
	PostOp(typ string, amount float64, desc, user string, at time.Time) (op store.Op, id string, ok bool)
	RecordExpense(ctx context.Context, s auth.Session, desc, amount string) (*Entry, error)
	SoftDelete(ctx context.Context, s auth.Session, id string) error
	Restore(ctx context.Context, s auth.Session, trashID string) (*Entry, error)
	Purge(ctx context.Context, s auth.Session, trashID string) error
	Filter(q Query) Result
	// Range returns the range sess may query given the requested bounds.
	Range(s auth.Session, from, to time.Time) Range
	All() []Entry
	Close()
}

// Deps are the collaborators of the ledger.
type Deps struct {
	Store    store.Store
	Trash    trash.Service
	Location *time.Location
	Now      func() time.Time
}
