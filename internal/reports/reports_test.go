package reports

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/ledger"
	"atlasgym/internal/membership"
	"atlasgym/internal/plans"
	"atlasgym/internal/shop"
	"atlasgym/internal/store"
	"atlasgym/internal/trash"
	"atlasgym/internal/visits"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0    = time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	admin = auth.Session{Username: "admin", Role: auth.RoleAdmin}
	caja  = auth.Session{Username: "caja", Role: auth.RoleStaff}
)

func TestDashboardUsesSharedStatusRule(t *testing.T) {
	members := []membership.Member{
		{Name: "Ana", ExpiryDate: t0.AddDate(0, 0, 6), Dob: "1990-07-30"},
		{Name: "Beto", ExpiryDate: t0.AddDate(0, 0, 5), Dob: "1985-07-02"},
		{Name: "Carla", ExpiryDate: t0.Add(-time.Hour)},
		{Name: "Dani", ExpiryDate: t0.AddDate(0, 0, -1), Dob: "2000-01-02"},
		{Name: "Eva", ExpiryDate: t0.AddDate(0, 0, -3), Dob: "mal"},
	}
	d := DashboardOf(members, 7, t0, time.UTC)
	assert.Equal(t, 7, d.VisitsToday)
	assert.Equal(t, 1, d.Active)
	assert.Equal(t, 2, d.Expiring)
	assert.Equal(t, 2, d.Inactive)
	assert.Equal(t, []Birthday{{2, "Beto"}, {30, "Ana"}}, d.Birthdays)
}

func TestMemberReportFilters(t *testing.T) {
	members := []membership.Member{
		{Code: "1", Name: "beto", ExpiryDate: t0.AddDate(0, 0, 2), RegisteredAt: t0},
		{Code: "2", Name: "Ana", Phone: "555", ExpiryDate: t0.AddDate(0, 1, 0), RegisteredAt: t0},
	}
	r, err := Members(members, "all", t0, time.UTC)
	require.NoError(t, err)
	require.Len(t, r.Rows, 2)
	assert.Equal(t, []string{"2", "Ana", "555", "15/07/2024", "15/08/2024"}, r.Rows[0])
	assert.Equal(t, "N/A", r.Rows[1][2])

	r, err = Members(members, "expiring", t0, time.UTC)
	require.NoError(t, err)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "Reporte de Socios: EXPIRING", r.Title)

	_, err = Members(members, "vip", t0, time.UTC)
	assert.Error(t, err)
}

func TestFinanceReportSignsAndTotals(t *testing.T) {
	res := ledger.Result{
		Entries: []ledger.Entry{
			{Type: ledger.TypeInscripcion, Amount: 500, Desc: "Socio: Ana", User: "caja", Date: t0},
			{Type: "Salida", Amount: 120.5, Desc: "Luz", User: "admin", Date: t0},
		},
		Summary: ledger.Summary{Income: 500, Expense: 120.5, Balance: 379.5},
	}
	r := Finances(res, t0, t0, time.UTC)
	assert.Equal(t, "Reporte Financiero de 2024-07-15 a 2024-07-15", r.Title)
	assert.Equal(t, "+$500.00", r.Rows[0][4])
	assert.Equal(t, "-$120.50", r.Rows[1][4])
	require.NotNil(t, r.Summary)
	assert.Equal(t, 379.5, r.Summary.Balance)
}

func TestStoreReportAndReceipt(t *testing.T) {
	products := []shop.Product{{Name: "Agua", Price: 15, Stock: 2}, {Name: "Barra", Price: 30, Stock: 9, Category: "Snacks"}}
	r := Store(products, true)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, []string{"Agua", "General", "$15.00", "2"}, r.Rows[0])
	assert.Len(t, Store(products, false).Rows, 2)

	rc := ReceiptFor(ledger.Entry{Type: ledger.TypeTienda, Amount: 45, Desc: audit.ShopSale, User: "caja", Date: t0})
	assert.Equal(t, shop.WalkInCustomer, rc.Customer)
	assert.Equal(t, "Productos", rc.Concept)
	rc = ReceiptFor(ledger.Entry{Type: ledger.TypeRenovacion, Amount: 500, Desc: "Socio: Ana", User: "caja", Date: t0})
	assert.Equal(t, "Ana", rc.Customer)
	assert.Equal(t, "Renovación", rc.Concept)
}

func TestCardFor(t *testing.T) {
	expiry := t0.AddDate(0, 1, 0)
	c := CardFor(membership.Member{Name: "Ana  María López", Code: "48213", ExpiryDate: expiry})
	assert.Equal(t, "Ana  María López", c.Name)
	assert.Equal(t, "48213", c.Code)
	assert.True(t, expiry.Equal(c.Expires))
	assert.Equal(t, "MIEMBRO OFICIAL", c.Badge)
	assert.Equal(t, "tarjeta_Ana_María_López.png", c.FileName)
}

func newService(t *testing.T) (*Service, membership.Service) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	clock := func() time.Time { return t0 }
	log, err := audit.NewStoreLog(ctx, s)
	require.NoError(t, err)
	t.Cleanup(log.Close)
	rec := audit.Recorder{Log: log, Now: clock}

	bin, err := trash.NewService(ctx, s, rec)
	require.NoError(t, err)
	t.Cleanup(bin.Close)
	led, err := ledger.NewService(ctx, ledger.Deps{Store: s, Trash: bin, Location: time.UTC, Now: clock}, rec)
	require.NoError(t, err)
	t.Cleanup(led.Close)
	vis, err := visits.NewService(ctx, visits.Deps{Store: s, Location: time.UTC, Now: clock})
	require.NoError(t, err)
	t.Cleanup(vis.Close)
	members, err := membership.NewService(ctx, membership.Deps{
		Store: s, Plans: plans.NewCatalog(), Ledger: led, Trash: bin, Audit: log, Visits: vis, Now: clock, Location: time.UTC,
	})
	require.NoError(t, err)
	t.Cleanup(members.Close)
	goods, err := shop.NewService(ctx, shop.Deps{Store: s, Ledger: led, Now: clock}, rec)
	require.NoError(t, err)
	t.Cleanup(goods.Close)

	return NewService(Sources{Members: members, Ledger: led, Shop: goods, Visits: vis, Audit: log, Location: time.UTC, Now: clock}), members
}

func TestServiceBuildsFromLiveData(t *testing.T) {
	svc, members := newService(t)
	ctx := context.Background()
	reg, err := members.Register(ctx, caja, plans.Monthly, []membership.Participant{{Name: "Ana", Phone: "555"}})
	require.NoError(t, err)

	r, err := svc.Build(ctx, caja, KindMembers, Params{Type: "active"})
	require.NoError(t, err)
	assert.Len(t, r.Rows, 1)

	r, err = svc.Build(ctx, admin, KindFinances, Params{From: t0, To: t0})
	require.NoError(t, err)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, float64(500), r.Summary.Income)

	_, err = svc.Build(ctx, admin, KindFinances, Params{})
	assert.True(t, errs.IsValidation(err))
	_, err = svc.Build(ctx, caja, KindHistory, Params{})
	assert.True(t, errors.Is(err, errs.ErrAccessDenied))
	r, err = svc.Build(ctx, admin, KindHistory, Params{})
	require.NoError(t, err)
	assert.Len(t, r.Rows, 1)
	_, err = svc.Build(ctx, admin, "payroll", Params{})
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	rc, err := svc.Receipt(reg.LedgerID)
	require.NoError(t, err)
	assert.Equal(t, "Membresía", rc.Concept)
	assert.Equal(t, float64(500), rc.Amount)

	card, err := svc.Card(reg.Members[0].ID)
	require.NoError(t, err)
	assert.Equal(t, reg.Members[0].Code, card.Code)
	_, err = svc.Card("missing")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	d := svc.Dashboard()
	assert.Equal(t, 1, d.Active)
}

func TestHandlerWritesCSV(t *testing.T) {
	svc, members := newService(t)
	_, err := members.Register(context.Background(), caja, plans.Monthly, []membership.Participant{{Name: "Ana, la fuerte", Phone: "555"}})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/reports", NewHandler(svc).Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/members?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Código,Nombre,Teléfono,Registro,Vencimiento", lines[0])
	assert.Contains(t, lines[1], `"Ana, la fuerte"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/finances?from=ayer", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
