// Package projection keeps local read models of store collections current
// through store subscriptions. Operations read these snapshots instead of
// the remote store, so a view may briefly lag a concurrent writer.
package projection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"atlasgym/internal/store"
)

// Collection mirrors a map-shaped store path as a set of T keyed by id.
type Collection[T any] struct {
	path  string
	setID func(*T, string)

	mu    sync.RWMutex
	items map[string]T
	ready chan struct{}
	once  sync.Once

	cancel func()
}

// New subscribes to path. setID assigns the store key to each decoded value
// and may be nil.
func New[T any](ctx context.Context, s store.Store, path string, setID func(*T, string)) (*Collection[T], error) {
	c := &Collection[T]{
		path:  path,
		setID: setID,
		items: map[string]T{},
		ready: make(chan struct{}),
	}
	cancel, err := s.Subscribe(ctx, path, c.apply)
	if err != nil {
		return nil, err
	}
	c.cancel = cancel
	return c, nil
}

func (c *Collection[T]) apply(raw json.RawMessage) {
	var decoded map[string]json.RawMessage
	if _, err := store.Decode(raw, &decoded); err != nil {
		slog.Error("projection decode failed", "path", c.path, "error", err)
		return
	}
	items := make(map[string]T, len(decoded))
	for id, v := range decoded {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			slog.Warn("projection skipped malformed record", "path", c.path, "id", id, "error", err)
			continue
		}
		if c.setID != nil {
			c.setID(&item, id)
		}
		items[id] = item
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	c.once.Do(func() { close(c.ready) })
}

// Ready is closed after the first snapshot arrived.
func (c *Collection[T]) Ready() <-chan struct{} { return c.ready }

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item, ok
}

// All returns a copy of every item ordered by id.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.items[id])
	}
	return out
}

// Filter returns the items keep accepts, ordered by id.
func (c *Collection[T]) Filter(keep func(T) bool) []T {
	all := c.All()
	out := all[:0]
	for _, item := range all {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops following the store.
func (c *Collection[T]) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}
