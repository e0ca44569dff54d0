package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"atlasgym/internal/errs"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Values are kept as decoded JSON so reads
// return exactly what a remote driver would.
type Memory struct {
	mu      sync.RWMutex
	root    map[string]any
	version uint64

	subMu  sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	path string
	fn   func(json.RawMessage)

	mu   sync.Mutex
	last uint64
	done bool
}

func (s *subscriber) deliver(version uint64, raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || version < s.last {
		return
	}
	s.last = version
	if raw == nil {
		raw = json.RawMessage("null")
	}
	s.fn(raw)
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		root: map[string]any{},
		subs: map[int]*subscriber{},
	}
}

func (m *Memory) Get(ctx context.Context, path string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.encodeAt(path)
}

func (m *Memory) Set(ctx context.Context, path string, value any) error {
	return m.Commit(ctx, SetOp(path, value))
}

func (m *Memory) Update(ctx context.Context, path string, partial map[string]any) error {
	return m.Commit(ctx, UpdateOp(path, partial))
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	return m.Commit(ctx, DeleteOp(path))
}

func (m *Memory) Add(ctx context.Context, collection string, value any) (string, error) {
	id := uuid.NewString()
	if err := m.Commit(ctx, CreateOp(Join(collection, id), value)); err != nil {
		return "", err
	}
	return id, nil
}

// Commit applies ops to a copy of the tree and swaps it in only when every
// op succeeded.
func (m *Memory) Commit(ctx context.Context, ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	next := cloneMap(m.root)
	for i, op := range ops {
		if err := apply(next, op); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("op %d (%s %s): %w", i, op.Kind, op.Path, err)
		}
	}
	m.root = next
	m.version++
	version := m.version
	m.mu.Unlock()

	m.notify(version, ops)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (func(), error) {
	sub := &subscriber{path: Join(path), fn: fn}

	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = sub
	m.subMu.Unlock()

	m.mu.RLock()
	raw, err := m.encodeAt(sub.path)
	version := m.version
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	sub.deliver(version, raw)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
			sub.mu.Lock()
			sub.done = true
			sub.mu.Unlock()
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			cancel()
		}()
	}
	return cancel, nil
}

func (m *Memory) notify(version uint64, ops []Op) {
	m.subMu.Lock()
	var targets []*subscriber
	for _, sub := range m.subs {
		for _, op := range ops {
			if Related(sub.path, op.Path) {
				targets = append(targets, sub)
				break
			}
		}
	}
	m.subMu.Unlock()

	for _, sub := range targets {
		m.mu.RLock()
		raw, err := m.encodeAt(sub.path)
		current := m.version
		m.mu.RUnlock()
		if err != nil {
			continue
		}
		if current > version {
			version = current
		}
		sub.deliver(version, raw)
	}
}

func (m *Memory) encodeAt(path string) (json.RawMessage, error) {
	node, ok := lookup(m.root, Split(path))
	if !ok {
		return nil, nil
	}
	return json.Marshal(node)
}

func lookup(root map[string]any, segs []string) (any, bool) {
	var node any = root
	for _, s := range segs {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = obj[s]
		if !ok {
			return nil, false
		}
	}
	if obj, ok := node.(map[string]any); ok && len(obj) == 0 && len(segs) > 0 {
		return nil, false
	}
	return node, true
}

func apply(root map[string]any, op Op) error {
	segs := Split(op.Path)
	switch op.Kind {
	case OpSet, OpCreate:
		if op.Kind == OpCreate {
			if _, exists := lookup(root, segs); exists {
				return errs.ErrConflict
			}
		}
		v, err := normalize(op.Value)
		if err != nil {
			return err
		}
		return put(root, segs, v)
	case OpUpdate:
		parent := ensure(root, segs)
		for k, val := range op.Partial {
			v, err := normalize(val)
			if err != nil {
				return err
			}
			if v == nil {
				delete(parent, k)
				continue
			}
			parent[k] = v
		}
		return nil
	case OpDelete:
		return put(root, segs, nil)
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}

func put(root map[string]any, segs []string, v any) error {
	if len(segs) == 0 {
		switch t := v.(type) {
		case nil:
			clear(root)
		case map[string]any:
			clear(root)
			for k, val := range t {
				root[k] = val
			}
		default:
			return ErrInvalidValue
		}
		return nil
	}
	if v == nil {
		removePath(root, segs)
		return nil
	}
	parent := ensure(root, segs[:len(segs)-1])
	parent[segs[len(segs)-1]] = v
	return nil
}

// ensure walks segs creating objects as needed and returns the last one.
// Scalars in the way are replaced.
func ensure(root map[string]any, segs []string) map[string]any {
	node := root
	for _, s := range segs {
		child, ok := node[s].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[s] = child
		}
		node = child
	}
	return node
}

// removePath deletes the leaf and prunes parents left empty.
func removePath(root map[string]any, segs []string) {
	parent, ok := root[segs[0]]
	if len(segs) == 1 {
		delete(root, segs[0])
		return
	}
	if !ok {
		return
	}
	obj, ok := parent.(map[string]any)
	if !ok {
		return
	}
	removePath(obj, segs[1:])
	if len(obj) == 0 {
		delete(root, segs[0])
	}
}

func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func cloneMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
