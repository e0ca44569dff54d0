package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"atlasgym/internal/errs"
	"atlasgym/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSecret(t *testing.T, password string) Secret {
	t.Helper()
	enc, err := EncodeSecret(password)
	require.NoError(t, err)
	s, err := ParseSecret(enc)
	require.NoError(t, err)
	return s
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, salt, err := HashPassword("hunter2")
	require.NoError(t, err)

	ok, err := VerifyPassword("hunter2", salt, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("hunter3", salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("x", "%%%", hash)
	assert.Error(t, err)
}

func TestParseSecretRejectsMalformed(t *testing.T) {
	_, err := ParseSecret("nodollar")
	assert.Error(t, err)
	_, err = ParseSecret("$hash")
	assert.Error(t, err)
	assert.False(t, Secret{Salt: "bad", Hash: "bad"}.Matches("x"))
}

func TestVisibleSections(t *testing.T) {
	staff := VisibleSections(RoleStaff, nil)
	assert.NotContains(t, staff, SectionTrash)
	assert.NotContains(t, staff, SectionDev)
	assert.Contains(t, staff, SectionMembers)

	admin := VisibleSections(RoleAdmin, []string{SectionShop})
	assert.Contains(t, admin, SectionTrash)
	assert.Contains(t, admin, SectionHistory)
	assert.NotContains(t, admin, SectionShop)
	assert.NotContains(t, admin, SectionDev)

	dev := VisibleSections(RoleDev, []string{SectionDev, SectionFinances})
	assert.Contains(t, dev, SectionDev)
	assert.NotContains(t, dev, SectionFinances)
}

func TestChallenge(t *testing.T) {
	c := NewChallenge(mustSecret(t, "4321"))

	ok, err := c.Check(nil)
	assert.NoError(t, err)
	assert.False(t, ok)

	wrong := "1111"
	_, err = c.Check(&wrong)
	assert.True(t, errors.Is(err, errs.ErrChallengeFailed))

	right := "4321"
	ok, err = c.Check(&right)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestChainVerifiesStaticThenStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	hash, salt, err := HashPassword("pw-ana")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "users/u1", User{Name: "Ana", Username: "ana", Role: RoleStaff, PasswordHash: hash, Salt: salt}))

	dir, err := NewDirectory(ctx, s)
	require.NoError(t, err)
	defer dir.Close()

	chain := Chain{
		NewStaticVerifier(Account{Username: "admin", Role: RoleAdmin, Secret: mustSecret(t, "pw-admin")}),
		NewStoreVerifier(dir),
	}

	id, err := chain.Verify(ctx, "Admin", "pw-admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, id.Role)
	assert.Empty(t, id.UserID)

	id, err = chain.Verify(ctx, "ANA", "pw-ana")
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, RoleStaff, id.Role)

	_, err = chain.Verify(ctx, "ana", "pw-admin")
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))
	_, err = chain.Verify(ctx, "nobody", "x")
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))
}

func TestTokensRoundTripAndExpiry(t *testing.T) {
	tok := NewTokens("secret", time.Hour)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tok.now = func() time.Time { return now }

	in := Session{UserID: "u1", Username: "ana", Name: "Ana", Role: RoleStaff, Hidden: []string{SectionShop}, IssuedAt: now}
	raw, err := tok.Issue(in)
	require.NoError(t, err)

	out, err := tok.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, in.Username, out.Username)
	assert.Equal(t, in.Hidden, out.Hidden)
	assert.True(t, in.IssuedAt.Equal(out.IssuedAt))

	_, err = NewTokens("other", time.Hour).Parse(raw)
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))

	now = now.Add(2 * time.Hour)
	_, err = tok.Parse(raw)
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))
}

func TestLoginIsRateLimited(t *testing.T) {
	v := NewStaticVerifier(Account{Username: "admin", Role: RoleAdmin, Secret: mustSecret(t, "pw")})
	a := NewAuthenticator(v, NewTokens("k", time.Hour), 2)
	ctx := context.Background()

	_, _, err := a.Login(ctx, "admin", "nope")
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))
	sess, token, err := a.Login(ctx, "admin", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, RoleAdmin, sess.Role)

	_, _, err = a.Login(ctx, "admin", "pw")
	assert.True(t, errors.Is(err, errs.ErrRateLimited))
}

func TestIdleLimitersAreDropped(t *testing.T) {
	v := NewStaticVerifier(Account{Username: "admin", Role: RoleAdmin, Secret: mustSecret(t, "pw")})
	a := NewAuthenticator(v, NewTokens("k", time.Hour), 1)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	ctx := context.Background()

	for _, name := range []string{"x1", "x2", "x3", "admin"} {
		_, _, _ = a.Login(ctx, name, "guess")
	}
	assert.Len(t, a.limiters, 4)
	_, _, err := a.Login(ctx, "admin", "pw")
	assert.True(t, errors.Is(err, errs.ErrRateLimited))

	now = now.Add(limiterIdle)
	_, _, err = a.Login(ctx, "admin", "pw")
	require.NoError(t, err)
	assert.Len(t, a.limiters, 1)
}

func TestMiddlewareHonoursForceLogout(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Set(ctx, "users/u1", map[string]any{
		"name": "Ana", "username": "ana", "role": "staff",
		"hiddenSections": []string{SectionShop},
	}))
	dir, err := NewDirectory(ctx, s)
	require.NoError(t, err)
	defer dir.Close()

	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tokens := NewTokens("k", time.Hour)
	tokens.now = func() time.Time { return issued }
	raw, err := tokens.Issue(Session{UserID: "u1", Username: "ana", Role: RoleStaff, IssuedAt: issued})
	require.NoError(t, err)

	var seen Session
	h := Middleware(tokens, dir)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(auth string) int {
		req := httptest.NewRequest(http.MethodGet, "/me/sections", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusNoContent, call("Bearer "+raw))
	assert.Equal(t, []string{SectionShop}, seen.Hidden)

	loggedOut := issued.Add(time.Minute)
	require.NoError(t, s.Update(ctx, "users/u1", map[string]any{"sessionsValidAfter": loggedOut}))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+raw))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+raw), "a revoked token stays revoked")

	fresh, err := tokens.Issue(Session{UserID: "u1", Username: "ana", Role: RoleStaff, IssuedAt: loggedOut.Add(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, call("Bearer "+fresh))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+raw))
}
