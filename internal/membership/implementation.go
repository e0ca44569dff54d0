// internal/membership/implementation.go
package membership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/ledger"
	"atlasgym/internal/plans"
	"atlasgym/internal/projection"
	"atlasgym/internal/store"
	"atlasgym/internal/trash"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface.
type service struct {
	store     store.Store
	plans     *plans.Catalog
	ledger    ledger.Service
	trash     trash.Service
	audit     audit.Recorder
	challenge *auth.Challenge
	visits    VisitIndex
	codes     CodeSource
	now       func() time.Time
	loc       *time.Location

	members  *projection.Collection[Member]
	validate *validator.Validate
	tracer   trace.Tracer
	metrics  instruments
}

// NewService creates the lifecycle engine and starts following the members
// collection.
func NewService(ctx context.Context, d Deps) (Service, error) {
	members, err := projection.New(ctx, d.Store, store.Members, func(m *Member, id string) { m.ID = id })
	if err != nil {
		return nil, fmt.Errorf("follow members: %w", err)
	}
	s := &service{
		store:     d.Store,
		plans:     d.Plans,
		ledger:    d.Ledger,
		trash:     d.Trash,
		challenge: d.Challenge,
		visits:    d.Visits,
		codes:     d.Codes,
		now:       d.Now,
		loc:       d.Location,
		members:   members,
		validate:  validator.New(),
		tracer:    otel.Tracer("atlasgym/membership"),
		metrics:   newInstruments(),
	}
	if s.codes == nil {
		s.codes = RandomCode
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.plans == nil {
		s.plans = plans.NewCatalog()
	}
	s.audit = audit.Recorder{Log: d.Audit, Now: s.now}
	return s, nil
}

func (s *service) checkParticipants(planKey string, participants []Participant) ([]Participant, error) {
	want := s.plans.ParticipantCountOf(planKey)
	if len(participants) != want {
		return nil, &errs.ValidationError{
			Index:  -1,
			Field:  "participants",
			Reason: fmt.Sprintf("must list exactly %d for plan %s, got %d", want, planKey, len(participants)),
		}
	}
	out := make([]Participant, len(participants))
	for i, p := range participants {
		p = p.normalized()
		if err := s.validate.Struct(p); err != nil {
			field, reason := "participant", "is invalid"
			var ve validator.ValidationErrors
			if errors.As(err, &ve) && len(ve) > 0 {
				field = strings.ToLower(ve[0].Field())
				switch ve[0].Tag() {
				case "required":
					reason = "is required"
				default:
					reason = "is malformed"
				}
			}
			return nil, &errs.ValidationError{Index: i, Field: field, Reason: reason}
		}
		out[i] = p
	}
	return out, nil
}

func (s *service) codeTaken(code string) bool {
	for _, m := range s.members.All() {
		if m.Code == code {
			return true
		}
	}
	return false
}

// Register creates one member per participant under one transaction. The
// members, their code reservations and the ledger line commit together; a
// lost reservation race draws new codes and tries again.
func (s *service) Register(ctx context.Context, sess auth.Session, planKey string, participants []Participant) (*Registration, error) {
	ctx, span := s.tracer.Start(ctx, "membership.register", trace.WithAttributes(
		attribute.String("plan", planKey),
		attribute.Int("participants", len(participants)),
	))
	defer span.End()

	people, err := s.checkParticipants(planKey, participants)
	if err != nil {
		return nil, err
	}

	rule, err := s.plans.DurationOf(planKey)
	if err != nil {
		slog.Warn("registering under unknown plan", "plan", planKey, "error", err)
	}
	price, err := s.plans.PriceOf(planKey)
	if err != nil {
		price = 0
	}

	now := s.now()
	expiry := rule.After(now)
	groupID := uuid.NewString()

	for attempt := 1; ; attempt++ {
		codes, err := drawCodes(s.codes, len(people), s.codeTaken)
		if err != nil {
			return nil, err
		}

		members := make([]Member, len(people))
		ops := make([]store.Op, 0, 2*len(people)+1)
		for i, p := range people {
			m := Member{
				ID:            uuid.NewString(),
				Code:          codes[i],
				Name:          p.Name,
				Phone:         p.Phone,
				Dob:           p.Dob,
				Email:         p.Email,
				Plan:          planKey,
				ExpiryDate:    expiry,
				RegisteredAt:  now,
				RegisteredBy:  sess.Username,
				TransactionID: groupID,
				GroupID:       groupID,
			}
			members[i] = m
			ops = append(ops,
				store.CreateOp(store.Join(store.Codes, m.Code), m.ID),
				store.SetOp(store.Join(store.Members, m.ID), m),
			)
		}

		desc := "Socio: " + members[0].Name
		if len(members) > 1 {
			desc = fmt.Sprintf("%s (+%d)", desc, len(members)-1)
		}
		postOp, ledgerID, posted := s.ledger.PostOp(ledger.TypeInscripcion, price, desc, sess.Username, now)
		if posted {
			ops = append(ops, postOp)
		}

		err = s.store.Commit(ctx, ops...)
		if errors.Is(err, errs.ErrConflict) && attempt < maxCodeAttempts {
			slog.Info("access code reservation lost, redrawing", "attempt", attempt)
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("register %d member(s): %w", len(members), err)
		}

		names := make([]string, len(members))
		msgs := make([]WelcomeMessage, len(members))
		for i, m := range members {
			names[i] = fmt.Sprintf("%s (%s)", m.Name, m.Code)
			msgs[i] = welcomeMessage(m)
		}
		s.audit.Record(ctx, audit.MemberRegistered, sess.Username,
			fmt.Sprintf("Se registraron %d socio(s) en plan %s: %s.", len(members), planKey, strings.Join(names, ", ")))
		add(ctx, s.metrics.registrations, len(members), planKey)
		s.metrics.charge(ctx, price, "registration")

		reg := &Registration{Members: members, GroupID: groupID, Plan: planKey, Price: price, Messages: msgs}
		if posted {
			reg.LedgerID = ledgerID
		}
		return reg, nil
	}
}

// Renew extends the target member and every member of its group to the
// same new expiry. The base is the later of now and the target's current
// expiry. The plan's participant count is not checked against the group.
func (s *service) Renew(ctx context.Context, sess auth.Session, memberID, planKey string) (*Renewal, error) {
	ctx, span := s.tracer.Start(ctx, "membership.renew", trace.WithAttributes(attribute.String("plan", planKey)))
	defer span.End()

	m, ok := s.members.Get(memberID)
	if !ok {
		return nil, errs.NotFound("member", memberID)
	}
	group := GroupOf(s.members.All(), m)
	span.SetAttributes(attribute.Int("group.size", len(group)))

	rule, err := s.plans.DurationOf(planKey)
	if err != nil {
		slog.Warn("renewing under unknown plan", "plan", planKey, "error", err)
	}
	price, err := s.plans.PriceOf(planKey)
	if err != nil {
		price = 0
	}

	now := s.now()
	base := m.ExpiryDate
	if base.Before(now) {
		base = now
	}
	expiry := rule.After(base)

	ops := make([]store.Op, 0, len(group)+1)
	for i := range group {
		group[i].ExpiryDate = expiry
		ops = append(ops, store.UpdateOp(store.Join(store.Members, group[i].ID), map[string]any{"expiryDate": expiry}))
	}
	desc := "Socio: " + m.Name
	if len(group) > 1 {
		desc = fmt.Sprintf("%s (grupo de %d)", desc, len(group))
	}
	postOp, ledgerID, posted := s.ledger.PostOp(ledger.TypeRenovacion, price, desc, sess.Username, now)
	if posted {
		ops = append(ops, postOp)
	}

	if err := s.store.Commit(ctx, ops...); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("renew %s: %w", memberID, err)
	}

	s.audit.Record(ctx, audit.MemberRenewed, sess.Username,
		fmt.Sprintf("Se renovó la membresía de %s (%d socio(s)) con plan %s hasta %s.", m.Name, len(group), planKey, expiry.In(s.loc).Format("2006-01-02")))
	add(ctx, s.metrics.renewals, len(group), planKey)
	s.metrics.charge(ctx, price, "renewal")

	r := &Renewal{Members: group, Plan: planKey, ExpiryDate: expiry, Price: price}
	if posted {
		r.LedgerID = ledgerID
	}
	return r, nil
}

func (s *service) Edit(ctx context.Context, sess auth.Session, memberID, name, phone string) (*Member, error) {
	if err := auth.RequireElevated(sess, "edit member"); err != nil {
		return nil, err
	}
	m, ok := s.members.Get(memberID)
	if !ok {
		return nil, errs.NotFound("member", memberID)
	}
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	if name == "" {
		return nil, errs.Invalid("name", "is required")
	}

	if err := s.store.Update(ctx, store.Join(store.Members, memberID), map[string]any{"name": name, "phone": phone}); err != nil {
		return nil, fmt.Errorf("edit %s: %w", memberID, err)
	}
	s.audit.Record(ctx, audit.MemberUpdated, sess.Username, fmt.Sprintf("Se actualizaron los datos de %s.", m.Name))
	m.Name, m.Phone = name, phone
	return &m, nil
}

// Delete cascades to the whole group in one commit and records a single
// audit entry.
func (s *service) Delete(ctx context.Context, sess auth.Session, memberID string, challenge *string) (int, error) {
	if err := auth.RequireElevated(sess, "delete member"); err != nil {
		return 0, err
	}
	m, ok := s.members.Get(memberID)
	if !ok {
		return 0, errs.NotFound("member", memberID)
	}
	proceed, err := s.challenge.Check(challenge)
	if err != nil || !proceed {
		return 0, err
	}

	ctx, span := s.tracer.Start(ctx, "membership.delete")
	defer span.End()

	group := GroupOf(s.members.All(), m)
	now := s.now()
	ops := make([]store.Op, 0, 2*len(group))
	for _, g := range group {
		snap, err := s.trash.SnapshotOp(trash.KindMember, g.ID, g, sess.Username, now)
		if err != nil {
			return 0, err
		}
		ops = append(ops, snap, store.DeleteOp(store.Join(store.Members, g.ID)))
	}
	if err := s.store.Commit(ctx, ops...); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("delete %s: %w", memberID, err)
	}

	desc := fmt.Sprintf("Se eliminó al socio %s (%s).", m.Name, m.Code)
	if len(group) > 1 {
		desc = fmt.Sprintf("Se eliminó al socio %s (%s) con su grupo de %d socios.", m.Name, m.Code, len(group))
	}
	s.audit.Record(ctx, audit.MemberDeleted, sess.Username, desc)
	add(ctx, s.metrics.deletions, len(group), m.Plan)
	return len(group), nil
}

func (s *service) memberEntry(trashID string) error {
	e, ok := s.trash.Get(trashID)
	if !ok || e.Kind() != trash.KindMember {
		return errs.NotFound("member trash entry", trashID)
	}
	return nil
}

func (s *service) Restore(ctx context.Context, sess auth.Session, trashID string) (*Member, error) {
	if err := s.memberEntry(trashID); err != nil {
		return nil, err
	}
	e, err := s.trash.Restore(ctx, sess, trashID)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(e.Fields)
	if err != nil {
		return nil, err
	}
	var m Member
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode restored member %s: %w", trashID, err)
	}
	m.ID = e.ID
	return &m, nil
}

func (s *service) Purge(ctx context.Context, sess auth.Session, trashID string) error {
	if err := s.memberEntry(trashID); err != nil {
		return err
	}
	_, err := s.trash.Purge(ctx, sess, trashID)
	return err
}

func (s *service) Get(id string) (Member, bool) { return s.members.Get(id) }

func (s *service) ByCode(code string) (Member, bool) {
	code = strings.TrimSpace(code)
	for _, m := range s.members.All() {
		if m.Code == code {
			return m, true
		}
	}
	return Member{}, false
}

func (s *service) Group(memberID string) ([]Member, error) {
	m, ok := s.members.Get(memberID)
	if !ok {
		return nil, errs.NotFound("member", memberID)
	}
	return GroupOf(s.members.All(), m), nil
}

// List filters members by status as of asOf and by a case-insensitive
// name or code search, ordered by name.
func (s *service) List(filter Filter, search string, asOf time.Time) []View {
	q := strings.ToLower(strings.TrimSpace(search))
	out := []View{}
	for _, m := range s.members.All() {
		if q != "" && !strings.Contains(strings.ToLower(m.Name), q) && !strings.Contains(m.Code, q) {
			continue
		}
		v := ViewOf(m, asOf)
		switch filter {
		case FilterActive:
			if v.Status != Active {
				continue
			}
		case FilterExpiring:
			if v.Status != Expiring {
				continue
			}
		case FilterInactive:
			if v.Status != Inactive {
				continue
			}
		case FilterVisitsToday:
			if s.visits == nil || !s.visits.VisitedOn(m.Code, asOf.In(s.loc)) {
				continue
			}
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *service) All() []Member { return s.members.All() }

func (s *service) Close() { s.members.Close() }
