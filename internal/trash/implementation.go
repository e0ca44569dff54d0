package trash

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/projection"
	"atlasgym/internal/store"
)

type service struct {
	store   store.Store
	entries *projection.Collection[Entry]
	audit   audit.Recorder
}

// NewService follows the trash collection of s.
func NewService(ctx context.Context, s store.Store, rec audit.Recorder) (Service, error) {
	c, err := projection.New(ctx, s, store.Trash, func(e *Entry, id string) { e.ID = id })
	if err != nil {
		return nil, fmt.Errorf("follow trash: %w", err)
	}
	return &service{store: s, entries: c, audit: rec}, nil
}

func livePath(k Kind, id string) (string, error) {
	switch k {
	case KindMember:
		return store.Join(store.Members, id), nil
	case KindFinance:
		return store.Join(store.Finances, id), nil
	default:
		return "", fmt.Errorf("trash entry %s has no restorable shape", id)
	}
}

func (s *service) SnapshotOp(kind Kind, id string, record any, by string, at time.Time) (store.Op, error) {
	if kind == KindInvalid {
		return store.Op{}, fmt.Errorf("snapshot of %s: invalid kind", id)
	}
	b, err := json.Marshal(record)
	if err != nil {
		return store.Op{}, fmt.Errorf("snapshot of %s: %w", id, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return store.Op{}, fmt.Errorf("snapshot of %s: %w", id, err)
	}
	delete(fields, "id")
	fields[fieldDeletedAt] = at.UTC().Format(time.RFC3339Nano)
	fields[fieldDeletedBy] = by
	fields[fieldObjectType] = kind.String()
	return store.SetOp(store.Join(store.Trash, id), fields), nil
}

// List returns entries newest deleted first.
func (s *service) List() []Entry {
	out := s.entries.All()
	sort.SliceStable(out, func(i, j int) bool { return out[i].DeletedAt.After(out[j].DeletedAt) })
	return out
}

func (s *service) Get(id string) (Entry, bool) { return s.entries.Get(id) }

// Restore writes the snapshot back without its trash metadata.
func (s *service) Restore(ctx context.Context, sess auth.Session, id string) (Entry, error) {
	e, ok := s.entries.Get(id)
	if !ok {
		return Entry{}, errs.NotFound("trash entry", id)
	}
	path, err := livePath(e.Kind(), id)
	if err != nil {
		return Entry{}, err
	}
	err = s.store.Commit(ctx,
		store.SetOp(path, e.Fields),
		store.DeleteOp(store.Join(store.Trash, id)),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("restore %s: %w", id, err)
	}

	typ := audit.MemberRestored
	if e.Kind() == KindFinance {
		typ = audit.FinanceRestored
	}
	s.audit.Record(ctx, typ, sess.Username, fmt.Sprintf("Restaurado: %s", e.Label()))
	return e, nil
}

// Purge removes the snapshot permanently and releases a member's access
// code reservation. Group members are purged one at a time.
func (s *service) Purge(ctx context.Context, sess auth.Session, id string) (Entry, error) {
	if err := auth.RequireElevated(sess, "purge"); err != nil {
		return Entry{}, err
	}
	e, ok := s.entries.Get(id)
	if !ok {
		return Entry{}, errs.NotFound("trash entry", id)
	}

	ops := []store.Op{store.DeleteOp(store.Join(store.Trash, id))}
	if code, _ := e.Fields["code"].(string); code != "" && e.Kind() == KindMember {
		ops = append(ops, store.DeleteOp(store.Join(store.Codes, code)))
	}
	if err := s.store.Commit(ctx, ops...); err != nil {
		return Entry{}, fmt.Errorf("purge %s: %w", id, err)
	}

	typ := audit.MemberPurged
	if e.Kind() == KindFinance {
		typ = audit.FinancePurged
	}
	s.audit.Record(ctx, typ, sess.Username, fmt.Sprintf("Eliminado permanentemente: %s", e.Label()))
	return e, nil
}

func (s *service) Close() { s.entries.Close() }
