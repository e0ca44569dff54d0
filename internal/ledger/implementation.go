package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/projection"
	"atlasgym/internal/store"
	"atlasgym/internal/trash"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type service struct {
	store   store.Store
	trash   trash.Service
	entries *projection.Collection[Entry]
	audit   audit.Recorder
	loc     *time.Location
	now     func() time.Time
	tracer  trace.Tracer
}

// NewService follows the finances collection.
func NewService(ctx context.Context, d Deps, rec audit.Recorder) (Service, error) {
	c, err := projection.New(ctx, d.Store, store.Finances, func(e *Entry, id string) { e.ID = id })
	if err != nil {
		return nil, fmt.Errorf("follow finances: %w", err)
	}
	s := &service{
		store:   d.Store,
		trash:   d.Trash,
		entries: c,
		audit:   rec,
		loc:     d.Location,
		now:     d.Now,
		tracer:  otel.Tracer("atlasgym/ledger"),
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *service) PostOp(typ string, amount float64, desc, user string, at time.Time) (store.Op, string, bool) {
	if !ValidAmount(amount) {
		return store.Op{}, "", false
	}
	id := uuid.NewString()
	e := Entry{ID: id, Type: typ, Amount: amount, Desc: desc, User: user, Date: at}
	return store.CreateOp(store.Join(store.Finances, id), e), id, true
}

func (s *service) Post(ctx context.Context, sess auth.Session, typ string, amount float64, desc string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.post", trace.WithAttributes(
		attribute.String("entry.type", typ),
		attribute.Float64("entry.amount", amount),
	))
	defer span.End()

	op, id, ok := s.PostOp(typ, amount, desc, sess.Username, s.now())
	if !ok {
		span.SetAttributes(attribute.Bool("entry.skipped", true))
		return "", nil
	}
	if err := s.store.Commit(ctx, op); err != nil {
		return "", fmt.Errorf("post %s: %w", typ, err)
	}
	return id, nil
}

func (s *service) RecordExpense(ctx context.Context, sess auth.Session, desc, amount string) (*Entry, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return nil, errs.Invalid("desc", "is required")
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil || !ValidAmount(value) {
		return nil, errs.Invalid("amount", "must be a positive number")
	}

	id, err := s.Post(ctx, sess, TypeGasto, value, desc)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.ExpenseRecorded, sess.Username, fmt.Sprintf("%s: $%.2f", desc, value))
	return &Entry{ID: id, Type: TypeGasto, Amount: value, Desc: desc, User: sess.Username}, nil
}

func (s *service) SoftDelete(ctx context.Context, sess auth.Session, id string) error {
	if err := auth.RequireElevated(sess, "delete finance entry"); err != nil {
		return err
	}
	e, ok := s.entries.Get(id)
	if !ok {
		return errs.NotFound("finance entry", id)
	}
	snap, err := s.trash.SnapshotOp(trash.KindFinance, id, e, sess.Username, s.now())
	if err != nil {
		return err
	}
	if err := s.store.Commit(ctx, snap, store.DeleteOp(store.Join(store.Finances, id))); err != nil {
		return fmt.Errorf("delete finance entry %s: %w", id, err)
	}
	s.audit.Record(ctx, audit.FinanceDeleted, sess.Username, fmt.Sprintf("%s $%.2f (%s)", e.Type, e.Amount, e.Desc))
	return nil
}

func (s *service) finance(trashID string) (trash.Entry, error) {
	e, ok := s.trash.Get(trashID)
	if !ok || e.Kind() != trash.KindFinance {
		return trash.Entry{}, errs.NotFound("finance trash entry", trashID)
	}
	return e, nil
}

func (s *service) Restore(ctx context.Context, sess auth.Session, trashID string) (*Entry, error) {
	if _, err := s.finance(trashID); err != nil {
		return nil, err
	}
	e, err := s.trash.Restore(ctx, sess, trashID)
	if err != nil {
		return nil, err
	}
	out := &Entry{ID: e.ID}
	out.Type, _ = e.Fields["type"].(string)
	out.Amount, _ = e.Fields["amount"].(float64)
	out.Desc, _ = e.Fields["desc"].(string)
	out.User, _ = e.Fields["user"].(string)
	if raw, ok := e.Fields["date"].(string); ok {
		out.Date, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return out, nil
}

func (s *service) Purge(ctx context.Context, sess auth.Session, trashID string) error {
	if _, err := s.finance(trashID); err != nil {
		return err
	}
	_, err := s.trash.Purge(ctx, sess, trashID)
	return err
}

func (s *service) Range(sess auth.Session, from, to time.Time) Range {
	return ClampRange(sess.Role, s.now().In(s.loc), from.In(s.loc), to.In(s.loc))
}

// Filter returns matching entries newest first with their totals. The
// distinct users come from the whole ledger so a filter can be widened.
func (s *service) Filter(q Query) Result {
	all := s.entries.All()

	var from, to time.Time
	if !q.From.IsZero() {
		from = startOfDay(q.From.In(s.loc))
	}
	if !q.To.IsZero() {
		to = startOfDay(q.To.In(s.loc)).AddDate(0, 0, 1)
	}

	seen := map[string]bool{}
	res := Result{Entries: []Entry{}, Users: []string{}}
	for _, e := range all {
		if e.User != "" && !seen[e.User] {
			seen[e.User] = true
			res.Users = append(res.Users, e.User)
		}
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !e.Date.Before(to) {
			continue
		}
		if !q.Type.match(e.Type) {
			continue
		}
		if q.User != "" && q.User != e.User {
			continue
		}
		res.Entries = append(res.Entries, e)
		if IsExpense(e.Type) {
			res.Summary.Expense += e.Amount
		} else {
			res.Summary.Income += e.Amount
		}
	}
	res.Summary.Balance = res.Summary.Income - res.Summary.Expense
	sort.SliceStable(res.Entries, func(i, j int) bool { return res.Entries[i].Date.After(res.Entries[j].Date) })
	sort.Strings(res.Users)
	return res
}

func (s *service) All() []Entry { return s.entries.All() }

func (s *service) Close() { s.entries.Close() }
