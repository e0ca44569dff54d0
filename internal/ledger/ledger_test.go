package ledger

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/store"
	"atlasgym/internal/trash"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	admin = auth.Session{Username: "admin", Role: auth.RoleAdmin}
	caja  = auth.Session{Username: "caja", Role: auth.RoleStaff}
	now   = time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
)

func setup(t *testing.T) (Service, trash.Service, *store.Memory) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	clock := func() time.Time { return now }
	rec := audit.Recorder{Now: clock}
	bin, err := trash.NewService(ctx, s, rec)
	require.NoError(t, err)
	t.Cleanup(bin.Close)
	l, err := NewService(ctx, Deps{Store: s, Trash: bin, Location: time.UTC, Now: clock}, rec)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l, bin, s
}

func TestIsExpense(t *testing.T) {
	for _, typ := range []string{"gasto", "GASTO", "Salida", " egreso "} {
		assert.True(t, IsExpense(typ), typ)
	}
	for _, typ := range []string{"INSCRIPCION", "TIENDA", "gastos", ""} {
		assert.False(t, IsExpense(typ), typ)
	}
}

func TestIsExpenseIgnoresCase(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.SampledFrom([]string{"gasto", "salida", "egreso"}).Draw(t, "word")
		mask := rapid.SliceOfN(rapid.Bool(), len(word), len(word)).Draw(t, "mask")
		var b strings.Builder
		for i, r := range word {
			if mask[i] {
				b.WriteString(strings.ToUpper(string(r)))
			} else {
				b.WriteRune(r)
			}
		}
		if !IsExpense(b.String()) {
			t.Fatalf("%q should be an expense", b.String())
		}
	})
}

func TestPostSkipsInvalidAmounts(t *testing.T) {
	ctx := context.Background()
	l, _, _ := setup(t)

	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		id, err := l.Post(ctx, admin, TypeInscripcion, amount, "x")
		require.NoError(t, err)
		assert.Empty(t, id)
	}
	assert.Empty(t, l.All())

	id, err := l.Post(ctx, admin, TypeInscripcion, 500, "Inscripción Ana")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	all := l.All()
	require.Len(t, all, 1)
	assert.Equal(t, id, all[0].ID)
	assert.Equal(t, "admin", all[0].User)
}

func TestFilterByTypeAndSummary(t *testing.T) {
	ctx := context.Background()
	l, _, s := setup(t)

	lines := []Entry{
		{Type: TypeInscripcion, Amount: 500, User: "ana", Date: now.Add(-time.Hour)},
		{Type: "Gasto", Amount: 120, User: "beto", Date: now.Add(-2 * time.Hour)},
		{Type: "SALIDA", Amount: 30, User: "ana", Date: now.Add(-3 * time.Hour)},
		{Type: "gastos varios", Amount: 10, User: "ana", Date: now.Add(-4 * time.Hour)},
		{Type: TypeTienda, Amount: 80, User: "ana", Date: now.AddDate(0, 0, -10)},
	}
	for _, e := range lines {
		_, err := s.Add(ctx, store.Finances, e)
		require.NoError(t, err)
	}

	exp := l.Filter(Query{Type: FilterExpense})
	require.Len(t, exp.Entries, 2)
	for _, e := range exp.Entries {
		assert.True(t, IsExpense(e.Type))
	}
	assert.Equal(t, 150.0, exp.Summary.Expense)
	assert.Zero(t, exp.Summary.Income)

	day := l.Filter(Query{From: now, To: now})
	assert.Len(t, day.Entries, 4)
	assert.Equal(t, 510.0, day.Summary.Income)
	assert.Equal(t, 360.0, day.Summary.Balance)
	assert.Equal(t, TypeInscripcion, day.Entries[0].Type)

	byUser := l.Filter(Query{User: "beto"})
	assert.Len(t, byUser.Entries, 1)
	assert.Equal(t, []string{"ana", "beto"}, byUser.Users)
}

func TestClampRange(t *testing.T) {
	mid := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	r := ClampRange(auth.RoleStaff, mid, time.Time{}, time.Time{})
	assert.True(t, r.Locked)
	assert.Equal(t, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), r.From)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), r.To)

	early := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	r = ClampRange(auth.RoleStaff, early, early.AddDate(0, -1, 0), early)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), r.From)

	r = ClampRange(auth.RoleAdmin, mid, time.Time{}, time.Time{})
	assert.False(t, r.Locked)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), r.From)

	jan := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	r = ClampRange(auth.RoleDev, mid, jan, mid)
	assert.Equal(t, jan, r.From)
}

func TestRecordExpenseValidates(t *testing.T) {
	ctx := context.Background()
	l, _, _ := setup(t)

	_, err := l.RecordExpense(ctx, caja, " ", "100")
	assert.True(t, errs.IsValidation(err))
	_, err = l.RecordExpense(ctx, caja, "Luz", "abc")
	assert.True(t, errs.IsValidation(err))
	_, err = l.RecordExpense(ctx, caja, "Luz", "-3")
	assert.True(t, errs.IsValidation(err))

	e, err := l.RecordExpense(ctx, caja, "Luz", "300.50")
	require.NoError(t, err)
	assert.Equal(t, TypeGasto, e.Type)
	assert.Equal(t, 300.5, e.Amount)
}

func TestSoftDeleteRestorePurge(t *testing.T) {
	ctx := context.Background()
	l, bin, _ := setup(t)

	id, err := l.Post(ctx, admin, TypeTienda, 45, "2 x Agua")
	require.NoError(t, err)

	assert.True(t, errors.Is(l.SoftDelete(ctx, caja, id), errs.ErrAccessDenied))
	require.NoError(t, l.SoftDelete(ctx, admin, id))
	assert.Empty(t, l.All())

	e, ok := bin.Get(id)
	require.True(t, ok)
	assert.Equal(t, trash.KindFinance, e.Kind())
	assert.Equal(t, "finance", e.ObjectType)

	restored, err := l.Restore(ctx, admin, id)
	require.NoError(t, err)
	assert.Equal(t, 45.0, restored.Amount)
	assert.True(t, restored.Date.Equal(now))
	require.Len(t, l.All(), 1)

	require.NoError(t, l.SoftDelete(ctx, admin, id))
	require.NoError(t, l.Purge(ctx, admin, id))
	_, err = l.Restore(ctx, admin, id)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}
