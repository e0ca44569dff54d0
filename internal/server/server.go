// Package server assembles the services and the HTTP router of atlasgym.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/httpx"
	"atlasgym/internal/ledger"
	"atlasgym/internal/membership"
	"atlasgym/internal/plans"
	"atlasgym/internal/reports"
	"atlasgym/internal/shop"
	"atlasgym/internal/staff"
	"atlasgym/internal/store"
	"atlasgym/internal/trash"
	"atlasgym/internal/visits"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	Store store.Store
	// Sinks receive a copy of every audit entry. The store-backed log is
	// always first and stays authoritative.
	Sinks []audit.Log

	Accounts   []auth.Account
	Challenge  auth.Secret
	JWTSecret  string
	SessionTTL time.Duration
	LoginRate  int

	Location *time.Location
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Now     func() time.Time
}

// Server is the running application: live projections plus the router.
type Server struct {
	handler http.Handler
	closers []func()
}

func New(ctx context.Context, o Options) (*Server, error) {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	srv := &Server{}
	ok := false
	defer func() {
		if !ok {
			srv.Close()
		}
	}()

	catalog := plans.NewCatalog()
	stopPrices, err := catalog.Follow(ctx, o.Store)
	if err != nil {
		return nil, fmt.Errorf("follow prices: %w", err)
	}
	srv.closers = append(srv.closers, stopPrices)

	storeLog, err := audit.NewStoreLog(ctx, o.Store)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	srv.closers = append(srv.closers, storeLog.Close)
	var log audit.Log = storeLog
	if len(o.Sinks) > 0 {
		log = append(audit.Multi{storeLog}, o.Sinks...)
	}
	rec := audit.Recorder{Log: log, Now: o.Now}
	challenge := auth.NewChallenge(o.Challenge)

	bin, err := trash.NewService(ctx, o.Store, rec)
	if err != nil {
		return nil, fmt.Errorf("trash: %w", err)
	}
	srv.closers = append(srv.closers, bin.Close)

	led, err := ledger.NewService(ctx, ledger.Deps{Store: o.Store, Trash: bin, Location: o.Location, Now: o.Now}, rec)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	srv.closers = append(srv.closers, led.Close)

	desk, err := visits.NewService(ctx, visits.Deps{Store: o.Store, Location: o.Location, Now: o.Now})
	if err != nil {
		return nil, fmt.Errorf("visits: %w", err)
	}
	srv.closers = append(srv.closers, desk.Close)

	members, err := membership.NewService(ctx, membership.Deps{
		Store:     o.Store,
		Plans:     catalog,
		Ledger:    led,
		Trash:     bin,
		Audit:     log,
		Challenge: challenge,
		Visits:    desk,
		Now:       o.Now,
		Location:  o.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("membership: %w", err)
	}
	srv.closers = append(srv.closers, members.Close)

	goods, err := shop.NewService(ctx, shop.Deps{Store: o.Store, Ledger: led, Now: o.Now}, rec)
	if err != nil {
		return nil, fmt.Errorf("shop: %w", err)
	}
	srv.closers = append(srv.closers, goods.Close)

	users, err := auth.NewDirectory(ctx, o.Store)
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	srv.closers = append(srv.closers, users.Close)

	operators := auth.NewStaticVerifier(o.Accounts...)
	team := staff.NewService(staff.Deps{Store: o.Store, Users: users, Audit: log, Challenge: challenge, Operators: operators, Now: o.Now})
	rep := reports.NewService(reports.Sources{
		Members:  members,
		Ledger:   led,
		Shop:     goods,
		Visits:   desk,
		Audit:    log,
		Location: o.Location,
		Now:      o.Now,
	})

	tokens := auth.NewTokens(o.JWTSecret, o.SessionTTL)
	authn := auth.NewAuthenticator(auth.Chain{operators, auth.NewStoreVerifier(users)}, tokens, o.LoginRate)
	login := auth.NewHandler(authn)
	shopHandler := shop.NewHandler(goods)
	reportHandler := reports.NewHandler(rep)
	staffHandler := staff.NewHandler(team)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(httpMetrics())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if o.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.Metrics)
	}
	r.Post("/login", login.HandleLogin)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokens, users))
		r.Get("/me/sections", login.HandleSections)
		r.Route("/members", membership.NewHandler(members).Routes)
		r.Route("/trash", trash.NewHandler(bin).Routes)
		r.Route("/finances", ledger.NewHandler(led, o.Location).Routes)
		r.Route("/visits", visits.NewHandler(desk, o.Location).Routes)
		r.Route("/products", shopHandler.Routes)
		r.Post("/checkout", shopHandler.HandleCheckout)
		r.Route("/plans", plans.NewHandler(catalog, o.Store, rec).Routes)
		r.Route("/reports", reportHandler.Routes)
		r.Get("/dashboard", reportHandler.HandleDashboard)
		r.Route("/staff", staffHandler.Routes)
		r.Route("/history", staffHandler.HistoryRoutes)
	})

	srv.handler = r
	ok = true
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }

// Close stops the live projections in reverse order of creation.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
