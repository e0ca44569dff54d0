package trash

import (
	"context"
	"time"

	"atlasgym/internal/auth"
	"atlasgym/internal/store"
)

// Service defines the trash bin operations.
type Service interface {
	// SnapshotOp builds the write that moves record into the trash. The
	// caller commits it together with the removal of the live record.
	SnapshotOp(kind Kind, id string, record any, by string, at time.Time) (store.Op, error)
	List() []Entry
	Get(id string) (Entry, bool)
	Restore(ctx context.Context, s auth.Session, id string) (Entry, error)
	Purge(ctx context.Context, s auth.Session, id string) (Entry, error)
	Close()
}
