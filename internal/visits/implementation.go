package visits

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"atlasgym/internal/errs"
	"atlasgym/internal/membership"
	"atlasgym/internal/projection"
	"atlasgym/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type service struct {
	store   store.Store
	visits  *projection.Collection[Visit]
	members *projection.Collection[membership.Member]
	loc     *time.Location
	now     func() time.Time
	tracer  trace.Tracer
	checkin metric.Int64Counter
}

// NewService follows the visits and members collections.
func NewService(ctx context.Context, d Deps) (Service, error) {
	v, err := projection.New(ctx, d.Store, store.Visits, func(v *Visit, id string) { v.ID = id })
	if err != nil {
		return nil, fmt.Errorf("follow visits: %w", err)
	}
	m, err := projection.New(ctx, d.Store, store.Members, func(m *membership.Member, id string) { m.ID = id })
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("follow members: %w", err)
	}
	s := &service{
		store:   d.Store,
		visits:  v,
		members: m,
		loc:     d.Location,
		now:     d.Now,
		tracer:  otel.Tracer("atlasgym/visits"),
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.checkin, err = otel.Meter("atlasgym/visits").Int64Counter("atlasgym.visits.checkins",
		metric.WithDescription("Check-in attempts by outcome"))
	if err != nil {
		slog.Warn("metric unavailable", "name", "atlasgym.visits.checkins", "error", err)
	}
	return s, nil
}

func (s *service) byCode(code string) (membership.Member, bool) {
	for _, m := range s.members.All() {
		if m.Code == code {
			return m, true
		}
	}
	return membership.Member{}, false
}

func (s *service) CheckIn(ctx context.Context, code string) (*Visit, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errs.Invalid("code", "is required")
	}
	ctx, span := s.tracer.Start(ctx, "visits.checkin")
	defer span.End()

	now := s.now()
	v := Visit{Code: code, Date: now, Status: Success}
	m, ok := s.byCode(code)
	switch {
	case !ok:
		v.Status, v.Reason = Denied, ReasonUnknownCode
	case membership.StatusAt(m, now) == membership.Inactive:
		v.Name = m.Name
		v.Status, v.Reason = Denied, ReasonExpired
	default:
		v.Name = m.Name
	}
	span.SetAttributes(attribute.String("visit.status", string(v.Status)))

	id, err := s.store.Add(ctx, store.Visits, v)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record visit %s: %w", code, err)
	}
	v.ID = id
	if s.checkin != nil {
		s.checkin.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(v.Status))))
	}
	if v.Status == Denied {
		slog.Info("check-in denied", "code", code, "reason", v.Reason)
	}
	return &v, nil
}

func (s *service) startOfDay(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func newestFirst(vs []Visit) []Visit {
	sort.SliceStable(vs, func(i, j int) bool { return chronological(vs[j], vs[i]) })
	return vs
}

func (s *service) between(from, to time.Time, keep func(Visit) bool) []Visit {
	return s.visits.Filter(func(v Visit) bool {
		if v.Date.Before(from) || !v.Date.Before(to) {
			return false
		}
		return keep == nil || keep(v)
	})
}

func (s *service) TodayCount() int {
	start := s.startOfDay(s.now())
	return len(s.between(start, start.AddDate(0, 0, 1), nil))
}

func (s *service) ForCode(code string) []Visit {
	return newestFirst(s.visits.Filter(func(v Visit) bool { return v.Code == code }))
}

func (s *service) ForMember(memberID string) ([]Visit, error) {
	m, ok := s.members.Get(memberID)
	if !ok {
		return nil, errs.NotFound("member", memberID)
	}
	return s.ForCode(m.Code), nil
}

func (s *service) InRange(from, to time.Time) []Visit {
	return newestFirst(s.between(s.startOfDay(from), s.startOfDay(to).AddDate(0, 0, 1), nil))
}

func (s *service) VisitedOn(code string, day time.Time) bool {
	start := s.startOfDay(day)
	return len(s.between(start, start.AddDate(0, 0, 1), func(v Visit) bool { return v.Code == code })) > 0
}

func (s *service) Alerts(after Cursor) ([]Visit, Cursor) {
	out := s.visits.Filter(func(v Visit) bool { return v.Status == Denied && after.Before(v) })
	sort.SliceStable(out, func(i, j int) bool { return chronological(out[i], out[j]) })
	if len(out) == 0 {
		return out, after
	}
	return out, Of(out[len(out)-1])
}

func (s *service) Close() {
	s.visits.Close()
	s.members.Close()
}
