package visits

import (
	"context"
	"time"

	"atlasgym/internal/store"
)

// Service defines the visit operations.
type Service interface {
	// CheckIn looks the code up and appends a success or denied visit. A
	// denied check-in is not an error.
	CheckIn(ctx context.Context, code string) (*Visit, error)
	TodayCount() int
	// ForCode returns the visits made with code, newest first.
	ForCode(code string) []Visit
	// ForMember returns the visits made with the member's current code.
	ForMember(memberID string) ([]Visit, error)
	// InRange returns the visits between the local days of from and to,
	// both inclusive, newest first.
	InRange(from, to time.Time) []Visit
	VisitedOn(code string, day time.Time) bool
	// Alerts returns the denied visits after the cursor, oldest first, and
	// the cursor to pass next time.
	Alerts(after Cursor) ([]Visit, Cursor)
	Close()
}

// Deps are the collaborators of the visit log.
type Deps struct {
	Store    store.Store
	Location *time.Location
	Now      func() time.Time
}
