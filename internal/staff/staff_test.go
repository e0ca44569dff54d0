package staff

import (
	"context"
	"errors"
	"testing"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/errs"
	"atlasgym/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin = auth.Session{Username: "admin", Role: auth.RoleAdmin}
	dev   = auth.Session{Username: "dev", Role: auth.RoleDev}
	caja  = auth.Session{Username: "caja", Role: auth.RoleStaff}
	t0    = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
)

func setup(t *testing.T) (Service, *store.Memory, *auth.Directory, *audit.StoreLog) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	users, err := auth.NewDirectory(ctx, s)
	require.NoError(t, err)
	t.Cleanup(users.Close)
	log, err := audit.NewStoreLog(ctx, s)
	require.NoError(t, err)
	t.Cleanup(log.Close)

	secret, err := auth.EncodeSecret("AtlassCC")
	require.NoError(t, err)
	parsed, err := auth.ParseSecret(secret)
	require.NoError(t, err)

	svc := NewService(Deps{Store: s, Users: users, Audit: log, Challenge: auth.NewChallenge(parsed),
		Operators: auth.NewStaticVerifier(auth.Account{Username: "admin", Role: auth.RoleAdmin, Secret: parsed}), Now: func() time.Time { return t0 }})
	return svc, s, users, log
}

func answer(s string) *string { return &s }

func TestRegisterHashesAndRejectsDuplicates(t *testing.T) {
	svc, _, users, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, caja, NewEmployee{Name: "Luis", Username: "luis", Password: "x"})
	assert.True(t, errors.Is(err, errs.ErrAccessDenied))

	e, err := svc.Register(ctx, admin, NewEmployee{Name: "Luis", Username: "luis", Password: "s3creta"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStaff, e.Role)

	u, ok := users.ByUsername("LUIS")
	require.True(t, ok)
	assert.NotEqual(t, "s3creta", u.PasswordHash)
	valid, err := auth.VerifyPassword("s3creta", u.Salt, u.PasswordHash)
	require.NoError(t, err)
	assert.True(t, valid)

	_, err = svc.Register(ctx, admin, NewEmployee{Name: "Otro", Username: "Luis", Password: "y"})
	assert.True(t, errors.Is(err, errs.ErrConflict))
	_, err = svc.Register(ctx, admin, NewEmployee{Name: "Impostor", Username: " Admin ", Password: "y"})
	assert.True(t, errors.Is(err, errs.ErrConflict), "configured account usernames are taken")
	_, err = svc.Register(ctx, admin, NewEmployee{Name: "", Username: "ana", Password: "y"})
	assert.True(t, errs.IsValidation(err))
	_, err = svc.Register(ctx, admin, NewEmployee{Name: "Dev", Username: "dev2", Password: "y", Role: auth.RoleDev})
	assert.True(t, errors.Is(err, errs.ErrAccessDenied))

	list := svc.List()
	require.Len(t, list, 1)
	assert.Equal(t, "luis", list[0].Username)
}

func TestDevControls(t *testing.T) {
	svc, _, users, _ := setup(t)
	ctx := context.Background()
	e, err := svc.Register(ctx, admin, NewEmployee{Name: "Luis", Username: "luis", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.SetHiddenSections(ctx, admin, e.ID, []string{auth.SectionShop})
	assert.True(t, errors.Is(err, errs.ErrAccessDenied))
	_, err = svc.SetHiddenSections(ctx, dev, e.ID, []string{"billing"})
	assert.True(t, errs.IsValidation(err))

	got, err := svc.SetHiddenSections(ctx, dev, e.ID, []string{auth.SectionShop, auth.SectionFinances, auth.SectionShop})
	require.NoError(t, err)
	assert.Equal(t, []string{auth.SectionFinances, auth.SectionShop}, got.HiddenSections)
	u, _ := users.ByID(e.ID)
	assert.Equal(t, got.HiddenSections, u.HiddenSections)

	assert.True(t, errors.Is(svc.ForceLogout(ctx, admin, e.ID), errs.ErrAccessDenied))
	require.NoError(t, svc.ForceLogout(ctx, dev, e.ID))
	u, _ = users.ByID(e.ID)
	assert.True(t, t0.Equal(u.SessionsValidAfter))
	assert.True(t, u.Revoked(t0))
	assert.False(t, u.Revoked(t0.Add(time.Second)))
	listed := svc.List()
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].LoggedOutAt)

	require.NoError(t, svc.Delete(ctx, admin, e.ID))
	assert.Empty(t, svc.List())
	assert.True(t, errors.Is(svc.Delete(ctx, admin, e.ID), errs.ErrNotFound))
}

func TestClearHistory(t *testing.T) {
	svc, _, _, log := setup(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, admin, NewEmployee{Name: "Luis", Username: "luis", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.ClearHistory(ctx, caja, answer("AtlassCC"))
	assert.True(t, errors.Is(err, errs.ErrAccessDenied))
	_, err = svc.ClearHistory(ctx, admin, answer("nope"))
	assert.True(t, errors.Is(err, errs.ErrChallengeFailed))
	done, err := svc.ClearHistory(ctx, admin, nil)
	require.NoError(t, err)
	assert.False(t, done)
	entries, _ := log.List(ctx)
	assert.Len(t, entries, 1)

	done, err = svc.ClearHistory(ctx, admin, answer("AtlassCC"))
	require.NoError(t, err)
	assert.True(t, done)

	entries, err = svc.History(ctx, admin)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.HistoryCleared, entries[0].Type)

	_, err = svc.History(ctx, caja)
	assert.True(t, errors.Is(err, errs.ErrAccessDenied))
}

func TestResetDeletesEverything(t *testing.T) {
	svc, s, _, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "members/m1", map[string]any{"name": "Ana", "code": "12345"}))
	require.NoError(t, s.Set(ctx, "config/prices", map[string]any{"monthly": 450}))

	_, err := svc.Reset(ctx, admin, answer("AtlassCC"))
	assert.True(t, errors.Is(err, errs.ErrAccessDenied))

	done, err := svc.Reset(ctx, dev, answer("AtlassCC"))
	require.NoError(t, err)
	assert.True(t, done)

	raw, err := s.Get(ctx, "members")
	require.NoError(t, err)
	assert.Nil(t, raw)
	raw, err = s.Get(ctx, "config/prices")
	require.NoError(t, err)
	assert.Nil(t, raw)
}
