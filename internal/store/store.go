// Package store is the keyed document tree every gym service reads and
// writes through. Drivers must apply a Commit atomically and notify
// subscribers with the full subtree of every path touched by a change.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Collection paths.
const (
	Members  = "members"
	Products = "products"
	Finances = "finances"
	Visits   = "visits"
	Trash    = "trash"
	History  = "history"
	Users    = "users"
	Codes    = "codes"
	Prices   = "config/prices"
)

var (
	ErrPathDepth    = errors.New("store: path too deep for driver")
	ErrInvalidValue = errors.New("store: value must be a JSON object")
)

// Store is the backing store contract.
type Store interface {
	// Get returns the JSON value at path, or nil when nothing is stored there.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, value any) error
	// Update shallow-merges partial into the object at path. Nil values
	// remove the corresponding key.
	Update(ctx context.Context, path string, partial map[string]any) error
	Delete(ctx context.Context, path string) error
	// Add stores value under a generated key of collection and returns the key.
	Add(ctx context.Context, collection string, value any) (string, error)
	// Subscribe calls fn with the subtree at path immediately and after every
	// change that affects it. The returned func stops delivery.
	Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (func(), error)
	// Commit applies ops in order, all or nothing.
	Commit(ctx context.Context, ops ...Op) error
}

// OpKind selects what an Op does.
type OpKind int

const (
	OpSet OpKind = iota
	OpUpdate
	OpDelete
	// OpCreate behaves like OpSet but fails with errs.ErrConflict when the
	// path already holds a value.
	OpCreate
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpCreate:
		return "create"
	default:
		return "unknown"
	}
}

// Op is one write of a Commit.
type Op struct {
	Kind    OpKind
	Path    string
	Value   any
	Partial map[string]any
}

func SetOp(path string, value any) Op { return Op{Kind: OpSet, Path: path, Value: value} }

func UpdateOp(path string, partial map[string]any) Op {
	return Op{Kind: OpUpdate, Path: path, Partial: partial}
}

func DeleteOp(path string) Op { return Op{Kind: OpDelete, Path: path} }

func CreateOp(path string, value any) Op { return Op{Kind: OpCreate, Path: path, Value: value} }

// Join builds a path out of segments, dropping empty ones.
func Join(parts ...string) string {
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, Split(p)...)
	}
	return strings.Join(segs, "/")
}

// Split returns the non-empty segments of path. The root is an empty slice.
func Split(path string) []string {
	raw := strings.Split(path, "/")
	segs := raw[:0]
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// Related reports whether a change at one path is visible from the other,
// that is when either is an ancestor of (or equal to) the other.
func Related(a, b string) bool {
	as, bs := Split(a), Split(b)
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// Decode unmarshals raw into v. A nil or null value leaves v untouched and
// reports false.
func Decode(raw json.RawMessage, v any) (bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}
