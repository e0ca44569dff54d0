package audit

import (
	"context"
	"fmt"

	"atlasgym/internal/projection"
	"atlasgym/internal/store"
)

// StoreLog keeps entries in the history collection.
type StoreLog struct {
	s       store.Store
	entries *projection.Collection[Entry]
}

func NewStoreLog(ctx context.Context, s store.Store) (*StoreLog, error) {
	c, err := projection.New(ctx, s, store.History, func(e *Entry, id string) { e.ID = id })
	if err != nil {
		return nil, fmt.Errorf("follow history: %w", err)
	}
	return &StoreLog{s: s, entries: c}, nil
}

func (l *StoreLog) Record(ctx context.Context, e Entry) error {
	if _, err := l.s.Add(ctx, store.History, e); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (l *StoreLog) List(ctx context.Context) ([]Entry, error) {
	out := l.entries.All()
	sortNewestFirst(out)
	return out, nil
}

func (l *StoreLog) Clear(ctx context.Context) error {
	return l.s.Delete(ctx, store.History)
}

func (l *StoreLog) Close() { l.entries.Close() }
