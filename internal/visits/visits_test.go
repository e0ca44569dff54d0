package visits

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"atlasgym/internal/membership"
	"atlasgym/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

func setup(t *testing.T) (Service, *store.Memory, *time.Time) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Set(ctx, "members/ana", membership.Member{Code: "12345", Name: "Ana", ExpiryDate: t0.AddDate(0, 0, 10)}))
	require.NoError(t, s.Set(ctx, "members/beto", membership.Member{Code: "54321", Name: "Beto", ExpiryDate: t0.AddDate(0, 0, -2)}))

	now := t0
	svc, err := NewService(ctx, Deps{Store: s, Location: time.UTC, Now: func() time.Time { return now }})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, s, &now
}

func TestCheckInOutcomes(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	v, err := svc.CheckIn(ctx, " 12345 ")
	require.NoError(t, err)
	assert.Equal(t, Success, v.Status)
	assert.Equal(t, "Ana", v.Name)
	assert.NotEmpty(t, v.ID)

	v, err = svc.CheckIn(ctx, "54321")
	require.NoError(t, err)
	assert.Equal(t, Denied, v.Status)
	assert.Equal(t, ReasonExpired, v.Reason)

	v, err = svc.CheckIn(ctx, "99999")
	require.NoError(t, err)
	assert.Equal(t, Denied, v.Status)
	assert.Equal(t, ReasonUnknownCode, v.Reason)

	_, err = svc.CheckIn(ctx, "")
	assert.Error(t, err)

	assert.Equal(t, 3, svc.TodayCount())
}

func TestQueriesByDay(t *testing.T) {
	svc, _, now := setup(t)
	ctx := context.Background()

	*now = t0.AddDate(0, 0, -1)
	_, err := svc.CheckIn(ctx, "12345")
	require.NoError(t, err)
	*now = t0
	_, err = svc.CheckIn(ctx, "12345")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.TodayCount())
	assert.True(t, svc.VisitedOn("12345", t0))
	assert.False(t, svc.VisitedOn("54321", t0))
	assert.True(t, svc.VisitedOn("12345", t0.AddDate(0, 0, -1).Add(12*time.Hour)))
	assert.False(t, svc.VisitedOn("12345", t0.AddDate(0, 0, 1)))

	all := svc.ForCode("12345")
	require.Len(t, all, 2)
	assert.True(t, all[0].Date.After(all[1].Date))

	byMember, err := svc.ForMember("ana")
	require.NoError(t, err)
	assert.Equal(t, all, byMember)
	_, err = svc.ForMember("nobody")
	assert.Error(t, err)

	assert.Len(t, svc.InRange(t0, t0), 1)
	assert.Len(t, svc.InRange(t0.AddDate(0, 0, -1), t0), 2)
}

func TestAlertsFollowCursor(t *testing.T) {
	svc, _, now := setup(t)
	ctx := context.Background()

	_, err := svc.CheckIn(ctx, "00000")
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, "12345")
	require.NoError(t, err)
	// same instant as the next denied visit
	_, err = svc.CheckIn(ctx, "54321")
	require.NoError(t, err)

	alerts, cursor := svc.Alerts(Cursor{})
	require.Len(t, alerts, 2)
	assert.Equal(t, Of(alerts[1]), cursor)

	again, same := svc.Alerts(cursor)
	assert.Empty(t, again)
	assert.Equal(t, cursor, same)

	*now = t0.Add(time.Second)
	_, err = svc.CheckIn(ctx, "77777")
	require.NoError(t, err)
	fresh, next := svc.Alerts(cursor)
	require.Len(t, fresh, 1)
	assert.Equal(t, "77777", fresh[0].Code)
	assert.True(t, next.At.Equal(*now))
}

func TestHandlerCheckIn(t *testing.T) {
	svc, _, _ := setup(t)
	r := chi.NewRouter()
	h := NewHandler(svc, time.UTC)
	h.now = func() time.Time { return t0 }
	r.Route("/visits", h.Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/visits/checkin", strings.NewReader(`{"code":"54321"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var v Visit
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.Equal(t, Denied, v.Status)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/visits/checkin", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/visits/alerts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Alerts []Visit `json:"alerts"`
		Cursor Cursor  `json:"cursor"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, v.ID, body.Cursor.ID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/visits?from=2024-06-03&to=2024-06-03", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/visits?from=junio", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
