package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"atlasgym/internal/errs"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying changed collections.
const NotifyChannel = "gym_store"

// Schema creates the documents table used by Postgres.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	key TEXT NOT NULL,
	value JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, key)
);
`

// Postgres stores each "collection/key" document as a JSONB row. Paths
// deeper than two segments cannot be written.
type Postgres struct {
	db      *sql.DB
	connStr string
	tracer  trace.Tracer

	mu     sync.Mutex
	nextID int
	subs   map[int]*pgSubscriber
}

type pgSubscriber struct {
	path string
	fn   func(json.RawMessage)
	mu   sync.Mutex
	done bool
}

// NewPostgres wraps db. connStr is used by Listen for cross-process change
// notifications and may be empty when only one process writes.
func NewPostgres(db *sql.DB, connStr string) *Postgres {
	return &Postgres{
		db:      db,
		connStr: connStr,
		tracer:  otel.Tracer("atlasgym/store"),
		subs:    map[int]*pgSubscriber{},
	}
}

// Migrate creates the schema when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate documents: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, path string) (json.RawMessage, error) {
	ctx, span := p.tracer.Start(ctx, "store.get", trace.WithAttributes(attribute.String("store.path", path)))
	defer span.End()

	segs := Split(path)
	switch len(segs) {
	case 0:
		return p.getTree(ctx)
	case 1:
		return p.getCollection(ctx, segs[0])
	case 2:
		var value string
		err := p.db.QueryRowContext(ctx, `
			SELECT value FROM documents WHERE collection = $1 AND key = $2
		`, segs[0], segs[1]).Scan(&value)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", path, err)
		}
		return json.RawMessage(value), nil
	default:
		return p.getNested(ctx, segs)
	}
}

func (p *Postgres) getCollection(ctx context.Context, collection string) (json.RawMessage, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT key, value FROM documents WHERE collection = $1
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", collection, err)
	}
	defer rows.Close()

	out := map[string]json.RawMessage{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return json.Marshal(out)
}

func (p *Postgres) getTree(ctx context.Context) (json.RawMessage, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT collection, key, value FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("get root: %w", err)
	}
	defer rows.Close()

	out := map[string]map[string]json.RawMessage{}
	for rows.Next() {
		var collection, key, value string
		if err := rows.Scan(&collection, &key, &value); err != nil {
			return nil, fmt.Errorf("scan root: %w", err)
		}
		if out[collection] == nil {
			out[collection] = map[string]json.RawMessage{}
		}
		out[collection][key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate root: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return json.Marshal(out)
}

// getNested reads below a document by decoding it.
func (p *Postgres) getNested(ctx context.Context, segs []string) (json.RawMessage, error) {
	raw, err := p.Get(ctx, Join(segs[0], segs[1]))
	if err != nil || raw == nil {
		return raw, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil
	}
	node, ok := lookup(doc, segs[2:])
	if !ok {
		return nil, nil
	}
	return json.Marshal(node)
}

func (p *Postgres) Set(ctx context.Context, path string, value any) error {
	return p.Commit(ctx, SetOp(path, value))
}

func (p *Postgres) Update(ctx context.Context, path string, partial map[string]any) error {
	return p.Commit(ctx, UpdateOp(path, partial))
}

func (p *Postgres) Delete(ctx context.Context, path string) error {
	return p.Commit(ctx, DeleteOp(path))
}

func (p *Postgres) Add(ctx context.Context, collection string, value any) (string, error) {
	id := uuid.NewString()
	if err := p.Commit(ctx, CreateOp(Join(collection, id), value)); err != nil {
		return "", err
	}
	return id, nil
}

// Commit runs every op and one pg_notify per touched collection in a single
// transaction.
func (p *Postgres) Commit(ctx context.Context, ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}
	ctx, span := p.tracer.Start(ctx, "store.commit", trace.WithAttributes(attribute.Int("store.ops", len(ops))))
	defer span.End()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	touched := map[string]bool{}
	for i, op := range ops {
		segs := Split(op.Path)
		if len(segs) > 2 {
			return fmt.Errorf("op %d (%s %s): %w", i, op.Kind, op.Path, ErrPathDepth)
		}
		if err := p.apply(ctx, tx, op, segs); err != nil {
			span.RecordError(err)
			return fmt.Errorf("op %d (%s %s): %w", i, op.Kind, op.Path, err)
		}
		if len(segs) == 0 {
			touched["*"] = true
		} else {
			touched[segs[0]] = true
		}
	}

	channels := make([]string, 0, len(touched))
	for c := range touched {
		channels = append(channels, c)
	}
	sort.Strings(channels)
	for _, c := range channels {
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, c); err != nil {
			return fmt.Errorf("notify %s: %w", c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	p.dispatch(ctx, ops)
	return nil
}

func (p *Postgres) apply(ctx context.Context, tx *sql.Tx, op Op, segs []string) error {
	switch op.Kind {
	case OpDelete:
		return p.remove(ctx, tx, segs)
	case OpSet:
		if op.Value == nil {
			return p.remove(ctx, tx, segs)
		}
		switch len(segs) {
		case 2:
			return upsert(ctx, tx, segs[0], segs[1], op.Value)
		case 1:
			return p.replaceCollection(ctx, tx, segs[0], op.Value)
		default:
			return p.replaceRoot(ctx, tx, op.Value)
		}
	case OpCreate:
		if len(segs) != 2 {
			return ErrPathDepth
		}
		value, err := encode(op.Value)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (collection, key, value) VALUES ($1, $2, $3::jsonb)
		`, segs[0], segs[1], value)
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errs.ErrConflict
		}
		return err
	case OpUpdate:
		switch len(segs) {
		case 2:
			return merge(ctx, tx, segs[0], segs[1], op.Partial)
		case 1:
			for _, key := range sortedKeys(op.Partial) {
				v := op.Partial[key]
				var err error
				if v == nil {
					_, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND key = $2`, segs[0], key)
				} else {
					err = upsert(ctx, tx, segs[0], key, v)
				}
				if err != nil {
					return err
				}
			}
			return nil
		default:
			return ErrPathDepth
		}
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}

func (p *Postgres) remove(ctx context.Context, tx *sql.Tx, segs []string) error {
	var err error
	switch len(segs) {
	case 0:
		_, err = tx.ExecContext(ctx, `DELETE FROM documents`)
	case 1:
		_, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1`, segs[0])
	default:
		_, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND key = $2`, segs[0], segs[1])
	}
	return err
}

func (p *Postgres) replaceCollection(ctx context.Context, tx *sql.Tx, collection string, value any) error {
	children, err := objectOf(value)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1`, collection); err != nil {
		return err
	}
	for _, key := range sortedKeys(children) {
		if err := upsert(ctx, tx, collection, key, children[key]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) replaceRoot(ctx context.Context, tx *sql.Tx, value any) error {
	collections, err := objectOf(value)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return err
	}
	for _, c := range sortedKeys(collections) {
		if err := p.replaceCollection(ctx, tx, c, collections[c]); err != nil {
			return err
		}
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, collection, key string, v any) error {
	value, err := encode(v)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, key, value) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`, collection, key, value)
	return err
}

// merge applies a shallow JSONB merge; nil values drop their keys.
func merge(ctx context.Context, tx *sql.Tx, collection, key string, partial map[string]any) error {
	set := map[string]any{}
	var drop []string
	for _, k := range sortedKeys(partial) {
		if partial[k] == nil {
			drop = append(drop, k)
			continue
		}
		set[k] = partial[k]
	}
	value, err := encode(set)
	if err != nil {
		return err
	}
	if drop == nil {
		drop = []string{}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, key, value) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, key) DO UPDATE
		SET value = (documents.value || EXCLUDED.value) - $4::text[], updated_at = NOW()
	`, collection, key, value, pq.Array(drop))
	return err
}

// Subscribe delivers the current subtree and then every change committed by
// this process or, once Listen runs, by any process.
func (p *Postgres) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (func(), error) {
	sub := &pgSubscriber{path: Join(path), fn: fn}
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = sub
	p.mu.Unlock()

	if err := p.refresh(ctx, sub); err != nil {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
		return nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
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

// Listen consumes NOTIFY messages until ctx ends. It needs the connection
// string given to NewPostgres.
func (p *Postgres) Listen(ctx context.Context) error {
	if p.connStr == "" {
		return errors.New("listen: no connection string configured")
	}
	listener := pq.NewListener(p.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("store listener event", "event", ev, "error", err)
		}
	})
	defer listener.Close()
	if err := listener.Listen(NotifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// A nil notification follows a reconnect: anything may have changed.
			path := ""
			if n != nil && n.Extra != "*" {
				path = n.Extra
			}
			p.dispatch(context.Background(), []Op{{Kind: OpSet, Path: path}})
		case <-time.After(90 * time.Second):
			go listener.Ping()
		}
	}
}

func (p *Postgres) dispatch(ctx context.Context, ops []Op) {
	p.mu.Lock()
	var targets []*pgSubscriber
	for _, sub := range p.subs {
		for _, op := range ops {
			if Related(sub.path, op.Path) {
				targets = append(targets, sub)
				break
			}
		}
	}
	p.mu.Unlock()

	for _, sub := range targets {
		if err := p.refresh(ctx, sub); err != nil {
			slog.Error("store subscriber refresh failed", "path", sub.path, "error", err)
		}
	}
}

func (p *Postgres) refresh(ctx context.Context, sub *pgSubscriber) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.done {
		return nil
	}
	raw, err := p.Get(ctx, sub.path)
	if err != nil {
		return err
	}
	if raw == nil {
		raw = json.RawMessage("null")
	}
	sub.fn(raw)
	return nil
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func objectOf(v any) (map[string]any, error) {
	norm, err := normalize(v)
	if err != nil {
		return nil, err
	}
	obj, ok := norm.(map[string]any)
	if !ok {
		return nil, ErrInvalidValue
	}
	return obj, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
