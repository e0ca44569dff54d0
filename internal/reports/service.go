package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/ledger"
	"atlasgym/internal/membership"
	"atlasgym/internal/shop"
	"atlasgym/internal/visits"
)

var errInvalidType = errors.New("unknown report type")

// Sources are the read models reports are built from.
type Sources struct {
	Members  membership.Service
	Ledger   ledger.Service
	Shop     shop.Service
	Visits   visits.Service
	Audit    audit.Log
	Location *time.Location
	Now      func() time.Time
}

// Service assembles reports from the live projections.
type Service struct {
	src Sources
}

func NewService(src Sources) *Service {
	if src.Location == nil {
		src.Location = time.Local
	}
	if src.Now == nil {
		src.Now = time.Now
	}
	return &Service{src: src}
}

func (s *Service) Build(ctx context.Context, sess auth.Session, kind Kind, p Params) (Report, error) {
	loc := s.src.Location
	switch kind {
	case KindMembers:
		r, err := Members(s.src.Members.All(), p.Type, s.src.Now(), loc)
		if errors.Is(err, errInvalidType) {
			return Report{}, errs.Invalid("type", "must be one of all active expiring inactive")
		}
		return r, err
	case KindFinances:
		if p.From.IsZero() || p.To.IsZero() {
			return Report{}, errs.Invalid("from", "both dates are required")
		}
		rng := s.src.Ledger.Range(sess, p.From, p.To)
		res := s.src.Ledger.Filter(ledger.Query{From: rng.From, To: rng.To, Type: ledger.FilterAll})
		return Finances(res, rng.From, rng.To, loc), nil
	case KindStore:
		switch p.Type {
		case "", "inventory":
			return Store(s.src.Shop.Inventory(), false), nil
		case "lowstock":
			return Store(s.src.Shop.Inventory(), true), nil
		}
		return Report{}, errs.Invalid("type", "must be one of inventory lowstock")
	case KindActivity:
		if p.From.IsZero() || p.To.IsZero() {
			return Report{}, errs.Invalid("from", "both dates are required")
		}
		return Activity(s.src.Visits.InRange(p.From, p.To), p.From, p.To, loc), nil
	case KindHistory:
		if err := auth.RequireElevated(sess, "history report"); err != nil {
			return Report{}, err
		}
		var entries []audit.Entry
		if s.src.Audit != nil {
			var err error
			if entries, err = s.src.Audit.List(ctx); err != nil {
				return Report{}, fmt.Errorf("history report: %w", err)
			}
		}
		return History(entries, loc), nil
	default:
		return Report{}, errs.NotFound("report", string(kind))
	}
}

// Receipt is the ticket for ledger line id.
func (s *Service) Receipt(id string) (Receipt, error) {
	for _, e := range s.src.Ledger.All() {
		if e.ID == id {
			return ReceiptFor(e), nil
		}
	}
	return Receipt{}, errs.NotFound("finance entry", id)
}

// Card is the membership card of member id.
func (s *Service) Card(id string) (Card, error) {
	m, ok := s.src.Members.Get(id)
	if !ok {
		return Card{}, errs.NotFound("member", id)
	}
	return CardFor(m), nil
}

func (s *Service) Dashboard() Dashboard {
	return DashboardOf(s.src.Members.All(), s.src.Visits.TodayCount(), s.src.Now(), s.src.Location)
}
